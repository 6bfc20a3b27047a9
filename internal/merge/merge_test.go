package merge

import (
	"strings"
	"testing"

	"github.com/bdougie/metafootage/internal/models"
)

func TestMergeDescriptionReplaced(t *testing.T) {
	updates := Merge(map[string]string{models.FieldDescription: "old"},
		models.AnalysisResult{ShortDesc: "a skier carves fresh powder"})
	if updates[models.FieldDescription] != "a skier carves fresh powder" {
		t.Errorf("description = %q", updates[models.FieldDescription])
	}
}

func TestMergeAbsentFieldsNotWritten(t *testing.T) {
	updates := Merge(map[string]string{
		models.FieldDescription: "operator description",
		models.FieldShot:        "dolly",
	}, models.AnalysisResult{Keywords: []string{"ski"}})

	for _, field := range []string{models.FieldDescription, models.FieldShot,
		models.FieldScene, models.FieldComments} {
		if _, ok := updates[field]; ok {
			t.Errorf("field %s written despite absent result value", field)
		}
	}
	if _, ok := updates[models.FieldKeywords]; !ok {
		t.Error("keywords missing from updates")
	}
}

// Output keyword set must contain every pre-existing keyword and every
// result term, and merging twice with the same result must be stable.
func TestMergeKeywordsNonDestructive(t *testing.T) {
	existing := map[string]string{models.FieldKeywords: "b-roll, sunset , alps"}
	r := models.AnalysisResult{
		Keywords: []string{"ski", "alps"},
		Subjects: []string{"skier"},
		Actions:  []string{"carving"},
	}

	updates := Merge(existing, r)
	got := updates[models.FieldKeywords]
	for _, want := range []string{"b-roll", "sunset", "alps", "ski", "skier", "carving"} {
		if !containsTerm(got, want) {
			t.Errorf("keyword %q lost from %q", want, got)
		}
	}

	// Stability: feeding the merged set back in changes nothing.
	again := Merge(map[string]string{models.FieldKeywords: got}, r)
	if again[models.FieldKeywords] != got {
		t.Errorf("second merge changed keywords:\n%q\n%q", got, again[models.FieldKeywords])
	}
}

func TestMergeKeywordsSortedAndDeduped(t *testing.T) {
	updates := Merge(map[string]string{}, models.AnalysisResult{
		Keywords: []string{"zebra", "antelope", "zebra", " antelope "},
	})
	if updates[models.FieldKeywords] != "antelope, zebra" {
		t.Errorf("keywords = %q", updates[models.FieldKeywords])
	}
}

func TestMergeKeywordsCaseSensitiveDedup(t *testing.T) {
	updates := Merge(map[string]string{models.FieldKeywords: "Ski"},
		models.AnalysisResult{Keywords: []string{"ski"}})
	got := updates[models.FieldKeywords]
	if !containsTerm(got, "Ski") || !containsTerm(got, "ski") {
		t.Errorf("exact-match dedup should keep both cases, got %q", got)
	}
}

func TestCommentsAppendUnderMarker(t *testing.T) {
	existing := map[string]string{models.FieldComments: "director prefers take 2"}
	updates := Merge(existing, models.AnalysisResult{
		LongDesc: "Wide establishing shot of the valley.",
		Lighting: "golden hour",
		Emotion:  "serene",
	})

	got := updates[models.FieldComments]
	if !strings.HasPrefix(got, "director prefers take 2") {
		t.Errorf("operator text not preserved: %q", got)
	}
	if strings.Count(got, Marker) != 1 {
		t.Errorf("marker count = %d", strings.Count(got, Marker))
	}
	for _, want := range []string{"Wide establishing shot", "Lighting: golden hour", "Emotion: serene"} {
		if !strings.Contains(got, want) {
			t.Errorf("comment block missing %q", want)
		}
	}
}

// Two merges with different results leave exactly one marker block holding
// the second result, with operator text untouched.
func TestCommentsReplaceNotAppend(t *testing.T) {
	existing := map[string]string{models.FieldComments: "operator notes"}

	first := Merge(existing, models.AnalysisResult{LongDesc: "First analysis."})
	second := Merge(map[string]string{models.FieldComments: first[models.FieldComments]},
		models.AnalysisResult{LongDesc: "Second analysis."})

	got := second[models.FieldComments]
	if strings.Count(got, Marker) != 1 {
		t.Fatalf("marker count = %d, want 1:\n%s", strings.Count(got, Marker), got)
	}
	if strings.Contains(got, "First analysis.") {
		t.Error("old generated block not replaced")
	}
	if !strings.Contains(got, "Second analysis.") {
		t.Error("new generated block missing")
	}
	if !strings.HasPrefix(got, "operator notes") {
		t.Errorf("operator text lost: %q", got)
	}
}

func TestCommentsNoOperatorText(t *testing.T) {
	updates := Merge(map[string]string{}, models.AnalysisResult{LongDesc: "Only analysis."})
	got := updates[models.FieldComments]
	if !strings.HasPrefix(got, Marker) {
		t.Errorf("comments should start at the marker when no operator text exists: %q", got)
	}
}

func TestMergeEmptyResultWritesNothing(t *testing.T) {
	updates := Merge(map[string]string{models.FieldKeywords: "keep"}, models.AnalysisResult{})
	if len(updates) != 0 {
		t.Errorf("empty result produced updates: %v", updates)
	}
}

func containsTerm(list, term string) bool {
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) == term {
			return true
		}
	}
	return false
}
