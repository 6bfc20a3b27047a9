// Package openai calls the OpenAI chat-completions endpoint with frames
// inlined as data URIs and JSON-mode output.
package openai

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

const defaultBaseURL = "https://api.openai.com"

type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func New(httpClient *http.Client) *Client {
	return &Client{HTTPClient: httpClient}
}

func (c *Client) Name() string { return "openai" }

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string    `json:"model"`
	Messages       []message `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Analyze(ctx context.Context, frames sampler.SampleSet, cfg models.ProviderConfig, clipName string) (models.AnalysisResult, error) {
	parts := make([]contentPart, 0, len(frames)+1)
	parts = append(parts, contentPart{
		Type: "text",
		Text: provider.UserPrompt(clipName) + "\n" + provider.FieldListPrompt(),
	})
	for _, frame := range frames {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/jpeg;base64," + frame},
		})
	}

	payload := chatRequest{
		Model: cfg.Model,
		Messages: []message{
			{Role: "system", Content: provider.SystemInstruction},
			{Role: "user", Content: parts},
		},
		Temperature: provider.Temperature,
	}
	payload.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(payload)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("openai: encode request: %w", err)
	}

	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, &provider.Error{Provider: "openai", Status: resp.StatusCode, Body: string(respBody)}
	}

	var envelope chatResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return models.AnalysisResult{}, &provider.MalformedResponseError{Provider: "openai", Reason: "unparseable envelope", Err: err}
	}
	if len(envelope.Choices) == 0 {
		return models.AnalysisResult{}, &provider.MalformedResponseError{Provider: "openai", Reason: "no choices returned"}
	}
	return provider.DecodeResult("openai", []byte(envelope.Choices[0].Message.Content))
}
