// Package provider defines the vision-model abstraction the pipeline talks
// to. Each remote service lives in its own subpackage behind the Provider
// interface; this package carries the pieces they share: the analysis
// prompt, the output schema, response normalization, and the error types
// the orchestrator dispatches on.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bdougie/metafootage/internal/models"
	"github.com/bdougie/metafootage/internal/sampler"
)

// Temperature keeps descriptions repeatable but not robotic.
const Temperature = 0.7

// Provider analyzes a set of sampled frames into structured clip metadata.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, frames sampler.SampleSet, cfg models.ProviderConfig, clipName string) (models.AnalysisResult, error)
}

// Registry is a read-only name-to-provider lookup.
type Registry struct {
	byName map[string]Provider
}

func NewRegistry(providers ...Provider) (Registry, error) {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			return Registry{}, fmt.Errorf("nil provider")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("provider with empty name")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("duplicate provider %q", name)
		}
		byName[name] = p
	}
	return Registry{byName: byName}, nil
}

func (r Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns the registered provider names, for usage messages.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
