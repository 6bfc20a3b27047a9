package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bdougie/metafootage/internal/models"
	"github.com/bdougie/metafootage/internal/provider"
	"github.com/bdougie/metafootage/internal/sampler"
)

var cfg = models.ProviderConfig{Model: "gpt-4o", APIKey: "sk-test", FrameCount: 2}

func respond(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{{
			"message": map[string]any{"content": content},
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestAnalyzeBuildsChatRequest(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(respond(`{"short_desc":"night market","keywords":["market","night"]}`)))
	}))
	defer srv.Close()

	c := New(srv.Client())
	c.BaseURL = srv.URL
	result, err := c.Analyze(context.Background(), sampler.SampleSet{"QUJD", "REVG"}, cfg, "market.mov")
	if err != nil {
		t.Fatal(err)
	}
	if result.ShortDesc != "night market" {
		t.Errorf("short_desc = %q", result.ShortDesc)
	}

	if raw["model"] != "gpt-4o" {
		t.Errorf("model = %v", raw["model"])
	}
	rf := raw["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v", rf)
	}
	messages := raw["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages len = %d", len(messages))
	}
	user := messages[1].(map[string]any)
	parts := user["content"].([]any)
	if len(parts) != 3 {
		t.Fatalf("user content parts = %d, want text + 2 images", len(parts))
	}
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	if !strings.HasPrefix(img["url"].(string), "data:image/jpeg;base64,QUJD") {
		t.Errorf("image url = %v", img["url"])
	}
}

func TestAnalyzeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := New(srv.Client())
	c.BaseURL = srv.URL
	_, err := c.Analyze(context.Background(), sampler.SampleSet{"QUJD"}, cfg, "clip")
	var provErr *provider.Error
	if !errors.As(err, &provErr) {
		t.Fatalf("got %v, want provider.Error", err)
	}
	if provErr.Status != http.StatusPaymentRequired {
		t.Errorf("status = %d", provErr.Status)
	}
}

func TestAnalyzeNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New(srv.Client())
	c.BaseURL = srv.URL
	_, err := c.Analyze(context.Background(), sampler.SampleSet{"QUJD"}, cfg, "clip")
	var malformed *provider.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("got %v, want MalformedResponseError", err)
	}
}

func TestAnalyzeFencedContentTolerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(respond("```json\n{\"short_desc\":\"fenced\"}\n```")))
	}))
	defer srv.Close()

	c := New(srv.Client())
	c.BaseURL = srv.URL
	result, err := c.Analyze(context.Background(), sampler.SampleSet{"QUJD"}, cfg, "clip")
	if err != nil {
		t.Fatal(err)
	}
	if result.ShortDesc != "fenced" {
		t.Errorf("short_desc = %q", result.ShortDesc)
	}
}
