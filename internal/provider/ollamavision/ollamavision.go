// Package ollamavision analyzes frames with a local Ollama vision model, so
// footage never leaves the machine and no API key is needed. The model is
// driven through the agent-api SDK: one pass per frame collecting visual
// notes, then a text-only pass that folds the notes into the structured
// result shared with the remote providers.
package ollamavision

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"
	"github.com/google/uuid"

	"github.com/bdougie/metafootage/internal/models"
	"github.com/bdougie/metafootage/internal/provider"
	"github.com/bdougie/metafootage/internal/sampler"
)

const (
	defaultBaseURL = "http://localhost"
	defaultPort    = 11434
)

// runner abstracts one model invocation; swapped out in tests.
type runner interface {
	run(ctx context.Context, prompt, imagePath string) (string, error)
}

type Client struct {
	logger *slog.Logger

	// newRunner builds the per-model runner; defaulted to the agent-api
	// implementation.
	newRunner func(ctx context.Context, model string) (runner, error)
}

func New(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{logger: logger}
	c.newRunner = func(ctx context.Context, model string) (runner, error) {
		return newAgentRunner(ctx, c.logger, model)
	}
	return c
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) Analyze(ctx context.Context, frames sampler.SampleSet, cfg models.ProviderConfig, clipName string) (models.AnalysisResult, error) {
	r, err := c.newRunner(ctx, cfg.Model)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("ollama: %w", err)
	}

	// The SDK takes image paths, so the frames go back onto disk for the
	// duration of the call.
	scratch := filepath.Join(os.TempDir(), "metafootage_ollama_"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("ollama: scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	var notes []string
	for i, frame := range frames {
		data, err := base64.StdEncoding.DecodeString(frame)
		if err != nil {
			return models.AnalysisResult{}, &provider.MalformedResponseError{Provider: "ollama", Reason: "undecodable frame", Err: err}
		}
		framePath := filepath.Join(scratch, fmt.Sprintf("frame_%d.jpg", i))
		if err := os.WriteFile(framePath, data, 0644); err != nil {
			return models.AnalysisResult{}, fmt.Errorf("ollama: write frame: %w", err)
		}

		note, err := r.run(ctx, framePrompt(clipName, i, len(frames)), framePath)
		if err != nil {
			return models.AnalysisResult{}, fmt.Errorf("ollama: frame %d: %w", i, err)
		}
		notes = append(notes, note)
	}

	text, err := r.run(ctx, structurePrompt(clipName, notes), "")
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("ollama: structuring pass: %w", err)
	}
	return provider.DecodeResult("ollama", []byte(text))
}

func framePrompt(clipName string, i, total int) string {
	return fmt.Sprintf(
		"This is frame %d of %d from the video shot %q. Describe the subjects, actions, camera framing, lighting, setting, and mood you can see. Be brief and concrete.",
		i+1, total, clipName)
}

func structurePrompt(clipName string, notes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You reviewed %d frames from the video shot %q. Your notes per frame were:\n\n", len(notes), clipName)
	for i, note := range notes {
		fmt.Fprintf(&b, "Frame %d: %s\n", i+1, note)
	}
	b.WriteString("\nCombine the notes into metadata for the whole shot. ")
	b.WriteString(provider.FieldListPrompt())
	b.WriteString(" Respond with the JSON object only, no prose.")
	return b.String()
}

// agentRunner drives a vision model through the agent-api SDK against a
// local Ollama instance.
type agentRunner struct {
	agent *agent.DefaultAgent
}

func newAgentRunner(ctx context.Context, logger *slog.Logger, model string) (runner, error) {
	opts := &ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: defaultBaseURL,
		Port:    defaultPort,
	}
	p := ollama.NewProvider(opts)
	p.UseModel(ctx, &types.Model{ID: model})

	a := agent.NewAgent(&agent.NewAgentConfig{
		Provider:     p,
		Logger:       logger,
		SystemPrompt: provider.SystemInstruction,
	})
	return &agentRunner{agent: a}, nil
}

func (r *agentRunner) run(ctx context.Context, prompt, imagePath string) (string, error) {
	if imagePath != "" {
		response := r.agent.Run(ctx, agent.WithInput(prompt), agent.WithImagePath(imagePath))
		if response.Err != nil {
			return "", response.Err
		}
		if len(response.Messages) == 0 {
			return "", fmt.Errorf("no response messages received from model")
		}
		return response.Messages[len(response.Messages)-1].Content, nil
	}

	response := r.agent.Run(ctx, agent.WithInput(prompt))
	if response.Err != nil {
		return "", response.Err
	}
	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}
	return response.Messages[len(response.Messages)-1].Content, nil
}
