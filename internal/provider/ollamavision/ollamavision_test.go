package ollamavision

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/bdougie/metafootage/internal/models"
	"github.com/bdougie/metafootage/internal/sampler"
)

type fakeRunner struct {
	calls      []string // prompts in order
	imagePaths []string
	structured string
	err        error
}

func (f *fakeRunner) run(_ context.Context, prompt, imagePath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, prompt)
	f.imagePaths = append(f.imagePaths, imagePath)
	if imagePath != "" {
		return "a person walks through frame", nil
	}
	return f.structured, nil
}

func newTestClient(f *fakeRunner) *Client {
	c := New(nil)
	c.newRunner = func(context.Context, string) (runner, error) { return f, nil }
	return c
}

func frames(n int) sampler.SampleSet {
	var out sampler.SampleSet
	for i := 0; i < n; i++ {
		out = append(out, base64.StdEncoding.EncodeToString([]byte("jpegdata")))
	}
	return out
}

var cfg = models.ProviderConfig{Model: "llama3.2-vision:11b", FrameCount: 3}

func TestAnalyzeTwoPassFlow(t *testing.T) {
	f := &fakeRunner{structured: `{"short_desc":"walking shot","keywords":["walking"]}`}
	c := newTestClient(f)

	result, err := c.Analyze(context.Background(), frames(3), cfg, "walk.mov")
	if err != nil {
		t.Fatal(err)
	}
	if result.ShortDesc != "walking shot" {
		t.Errorf("short_desc = %q", result.ShortDesc)
	}

	// Three frame passes plus one structuring pass.
	if len(f.calls) != 4 {
		t.Fatalf("runner called %d times, want 4", len(f.calls))
	}
	for i := 0; i < 3; i++ {
		if f.imagePaths[i] == "" {
			t.Errorf("frame pass %d had no image path", i)
		}
	}
	if f.imagePaths[3] != "" {
		t.Error("structuring pass should be text-only")
	}
	if !strings.Contains(f.calls[3], "a person walks through frame") {
		t.Error("structuring prompt does not carry the frame notes")
	}
}

func TestAnalyzeScratchCleanedUp(t *testing.T) {
	f := &fakeRunner{structured: `{"short_desc":"x"}`}
	c := newTestClient(f)
	if _, err := c.Analyze(context.Background(), frames(2), cfg, "clip"); err != nil {
		t.Fatal(err)
	}
	for _, p := range f.imagePaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("frame file %s survived the call", p)
		}
	}
}

func TestAnalyzeRunnerFailure(t *testing.T) {
	f := &fakeRunner{err: errors.New("ollama not running")}
	c := newTestClient(f)
	if _, err := c.Analyze(context.Background(), frames(1), cfg, "clip"); err == nil {
		t.Fatal("expected error when the model is unreachable")
	}
}

func TestAnalyzeBadFrameEncoding(t *testing.T) {
	f := &fakeRunner{structured: `{}`}
	c := newTestClient(f)
	_, err := c.Analyze(context.Background(), sampler.SampleSet{"%%%not-base64%%%"}, cfg, "clip")
	if err == nil {
		t.Fatal("expected error for undecodable frame")
	}
}
