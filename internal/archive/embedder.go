package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultEmbedURL   = "http://localhost:11434"
	defaultEmbedModel = "nomic-embed-text"
)

// OllamaEmbedder generates embeddings with a local Ollama model.
type OllamaEmbedder struct {
	HTTPClient *http.Client
	BaseURL    string
	Model      string
}

func NewOllamaEmbedder(httpClient *http.Client) *OllamaEmbedder {
	return &OllamaEmbedder{HTTPClient: httpClient}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	model := e.Model
	if model == "" {
		model = defaultEmbedModel
	}
	body, err := json.Marshal(embedRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embed: encode request: %w", err)
	}

	base := e.BaseURL
	if base == "" {
		base = defaultEmbedURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := e.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embed: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: HTTP %d: %s", resp.StatusCode, respBody)
	}

	var envelope embedResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	if len(envelope.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty embedding returned")
	}
	return envelope.Embedding, nil
}
