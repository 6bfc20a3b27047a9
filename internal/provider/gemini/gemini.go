// Package gemini calls the Google Gemini generateContent REST endpoint with
// schema-constrained JSON output.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bdougie/metafootage/internal/models"
	"github.com/bdougie/metafootage/internal/provider"
	"github.com/bdougie/metafootage/internal/sampler"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

type Client struct {
	// HTTPClient should carry the retrying transport. nil falls back to
	// http.DefaultClient.
	HTTPClient *http.Client

	// BaseURL is overridable for tests.
	BaseURL string
}

func New(httpClient *http.Client) *Client {
	return &Client{HTTPClient: httpClient}
}

func (c *Client) Name() string { return "gemini" }

// Request/response shapes for the v1beta generateContent API. Field names
// are the provider's contract.
type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType"`
	ResponseSchema   provider.Schema `json:"responseSchema"`
	Temperature      float64         `json:"temperature"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction content          `json:"systemInstruction"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) Analyze(ctx context.Context, frames sampler.SampleSet, cfg models.ProviderConfig, clipName string) (models.AnalysisResult, error) {
	parts := make([]part, 0, len(frames)+1)
	parts = append(parts, part{Text: provider.UserPrompt(clipName)})
	for _, frame := range frames {
		parts = append(parts, part{InlineData: &inlineData{MimeType: "image/jpeg", Data: frame}})
	}

	payload := generateRequest{
		Contents:          []content{{Parts: parts}},
		SystemInstruction: content{Parts: []part{{Text: provider.SystemInstruction}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   provider.ResultSchema(true),
			Temperature:      provider.Temperature,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("gemini: encode request: %w", err)
	}

	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", base, cfg.Model, cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, &provider.Error{Provider: "gemini", Status: resp.StatusCode, Body: string(respBody)}
	}

	var envelope generateResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return models.AnalysisResult{}, &provider.MalformedResponseError{Provider: "gemini", Reason: "unparseable envelope", Err: err}
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return models.AnalysisResult{}, &provider.MalformedResponseError{Provider: "gemini", Reason: "no candidates returned"}
	}
	return provider.DecodeResult("gemini", []byte(envelope.Candidates[0].Content.Parts[0].Text))
}
