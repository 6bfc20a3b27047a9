// Package merge folds a fresh analysis result into a clip's existing
// metadata without destroying operator edits. Output is always a sparse set
// of field writes; a field the result does not speak to is never touched.
package merge

import (
	"sort"
	"strings"

	"github.com/bdougie/metafootage/internal/models"
)

// Marker separates operator-written comments from the generated block.
// Everything before it is preserved verbatim; everything after it belongs to
// the latest analysis and is replaced wholesale on re-runs.
const Marker = "--- AI Analysis ---"

// Merge computes the metadata updates for one clip.
//
// Keyword policy: the existing comma-separated set is unioned with the
// result's keywords, subjects, and actions; duplicates are removed by exact
// (case-sensitive) string match after trimming, and the union is serialized
// sorted. Folding subjects and actions in matches the richer of the two
// observed behaviors and keeps every term searchable.
func Merge(existing map[string]string, r models.AnalysisResult) map[string]string {
	updates := map[string]string{}

	if r.ShortDesc != "" {
		updates[models.FieldDescription] = r.ShortDesc
	}
	if r.Camera != "" {
		updates[models.FieldShot] = r.Camera
	}
	if r.Setting != "" {
		updates[models.FieldScene] = r.Setting
	}

	if kw := mergeKeywords(existing[models.FieldKeywords], r); kw != "" {
		updates[models.FieldKeywords] = kw
	}

	if block := analysisBlock(r); block != "" {
		updates[models.FieldComments] = spliceComments(existing[models.FieldComments], block)
	}

	return updates
}

func mergeKeywords(existing string, r models.AnalysisResult) string {
	if len(r.Keywords)+len(r.Subjects)+len(r.Actions) == 0 {
		// Nothing to contribute; leave the field alone.
		return ""
	}
	set := map[string]bool{}
	add := func(terms []string) {
		for _, term := range terms {
			term = strings.TrimSpace(term)
			if term != "" {
				set[term] = true
			}
		}
	}
	add(strings.Split(existing, ","))
	add(r.Keywords)
	add(r.Subjects)
	add(r.Actions)

	if len(set) == 0 {
		return ""
	}
	out := make([]string, 0, len(set))
	for term := range set {
		out = append(out, term)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// analysisBlock renders the generated comment body: the long description
// plus lighting and emotion lines when present.
func analysisBlock(r models.AnalysisResult) string {
	var parts []string
	if r.LongDesc != "" {
		parts = append(parts, r.LongDesc)
	}
	if r.Lighting != "" {
		parts = append(parts, "Lighting: "+r.Lighting)
	}
	if r.Emotion != "" {
		parts = append(parts, "Emotion: "+r.Emotion)
	}
	return strings.Join(parts, "\n\n")
}

// spliceComments appends the block under the marker, replacing any previous
// generated block so re-runs never accumulate duplicates.
func spliceComments(existing, block string) string {
	operator := existing
	if i := strings.Index(existing, Marker); i >= 0 {
		operator = existing[:i]
		operator = strings.TrimRight(operator, " \n")
	}
	if operator == "" {
		return Marker + "\n" + block
	}
	return operator + "\n\n" + Marker + "\n" + block
}
