package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bdougie/metafootage/internal/models"
	"github.com/bdougie/metafootage/internal/sampler"
)

type stub struct{ name string }

func (s stub) Name() string { return s.name }
func (s stub) Analyze(context.Context, sampler.SampleSet, models.ProviderConfig, string) (models.AnalysisResult, error) {
	return models.AnalysisResult{}, nil
}

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry(stub{"gemini"}, stub{"openai"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Get("gemini"); !ok {
		t.Error("gemini not found")
	}
	if _, ok := r.Get("  OpenAI "); !ok {
		t.Error("lookup should be case-insensitive and trimmed")
	}
	if _, ok := r.Get("claude"); ok {
		t.Error("unregistered provider found")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(stub{"gemini"}, stub{"Gemini"}); err == nil {
		t.Fatal("expected duplicate provider error")
	}
}

func TestDecodeResultObject(t *testing.T) {
	text := []byte(`{"short_desc":"a dog runs","keywords":["dog","running"],"camera":"handheld"}`)
	r, err := DecodeResult("test", text)
	if err != nil {
		t.Fatal(err)
	}
	if r.ShortDesc != "a dog runs" || r.Camera != "handheld" || len(r.Keywords) != 2 {
		t.Errorf("got %+v", r)
	}
}

// Providers occasionally wrap a single object in an array; the first element
// is used rather than rejecting the response.
func TestDecodeResultArrayWrapped(t *testing.T) {
	text := []byte(`[{"short_desc":"first"},{"short_desc":"second"}]`)
	r, err := DecodeResult("test", text)
	if err != nil {
		t.Fatal(err)
	}
	if r.ShortDesc != "first" {
		t.Errorf("got %q, want first element", r.ShortDesc)
	}
}

func TestDecodeResultFencedJSON(t *testing.T) {
	text := []byte("```json\n{\"short_desc\":\"fenced\"}\n```")
	r, err := DecodeResult("test", text)
	if err != nil {
		t.Fatal(err)
	}
	if r.ShortDesc != "fenced" {
		t.Errorf("got %q", r.ShortDesc)
	}
}

func TestDecodeResultMalformed(t *testing.T) {
	for _, text := range []string{"", "not json at all", "[]"} {
		_, err := DecodeResult("test", []byte(text))
		var malformed *MalformedResponseError
		if !errors.As(err, &malformed) {
			t.Errorf("DecodeResult(%q) = %v, want MalformedResponseError", text, err)
		}
	}
}

func TestResultSchemaCovesAllFields(t *testing.T) {
	for _, upper := range []bool{true, false} {
		s := ResultSchema(upper)
		for _, field := range []string{"short_desc", "long_desc", "subjects",
			"actions", "camera", "lighting", "setting", "emotion", "keywords"} {
			if _, ok := s.Properties[field]; !ok {
				t.Errorf("schema(upper=%v) missing %q", upper, field)
			}
		}
		if len(s.Required) != 9 {
			t.Errorf("schema(upper=%v) requires %d fields, want 9", upper, len(s.Required))
		}
	}
}

func TestErrorTruncatesBody(t *testing.T) {
	e := &Error{Provider: "gemini", Status: 500, Body: strings.Repeat("x", 500)}
	if len(e.Error()) > 250 {
		t.Errorf("error string too long: %d chars", len(e.Error()))
	}
}
