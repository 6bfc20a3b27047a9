// Package enrich drives the per-clip pipeline: resolve a readable path,
// consult the cache, sample and analyze on a miss, merge the result into the
// clip's metadata, and record the outcome. A batch is best-effort across all
// selected clips; no single clip's failure stops the rest.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bdougie/metafootage/internal/cache"
	"github.com/bdougie/metafootage/internal/merge"
	"github.com/bdougie/metafootage/internal/models"
	"github.com/bdougie/metafootage/internal/provider"
	"github.com/bdougie/metafootage/internal/resolver"
	"github.com/bdougie/metafootage/internal/sampler"
)

// ClipStatus is a clip's position in the pipeline. Done, Skipped, Failed,
// and Cancelled are terminal.
type ClipStatus string

const (
	StatusPending   ClipStatus = "pending"
	StatusResolving ClipStatus = "resolving"
	StatusCacheHit  ClipStatus = "cache_hit"
	StatusSampling  ClipStatus = "sampling"
	StatusAnalyzing ClipStatus = "analyzing"
	StatusMerging   ClipStatus = "merging"
	StatusDone      ClipStatus = "done"
	StatusSkipped   ClipStatus = "skipped"
	StatusFailed    ClipStatus = "failed"
	StatusCancelled ClipStatus = "cancelled"
)

// Sampler is the frame extraction dependency; satisfied by *sampler.Sampler.
type Sampler interface {
	Sample(ctx context.Context, path string, frameCount int) (sampler.SampleSet, error)
}

// Archiver is an optional post-merge sink; satisfied by *archive.Archive.
type Archiver interface {
	Store(ctx context.Context, clipName, sourcePath, fingerprint string, result models.AnalysisResult) error
}

// Options are the per-run knobs beyond the provider config.
type Options struct {
	// CustomProxyRoot is an extra directory to probe for proxies of RAW
	// sources, e.g. a dedicated proxy drive.
	CustomProxyRoot string

	// Force bypasses cache reads; fresh results still refresh the cache.
	Force bool

	// Workers bounds concurrent clip processing. Zero or one means the
	// reference sequential behavior: no two network calls overlap.
	Workers int
}

// Orchestrator wires the pipeline components together for one or more runs.
type Orchestrator struct {
	resolver *resolver.Resolver
	sampler  Sampler
	cache    *cache.Store
	provider provider.Provider
	archive  Archiver
	logger   *slog.Logger
}

func New(res *resolver.Resolver, smp Sampler, store *cache.Store, prov provider.Provider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if res == nil {
		res = resolver.New()
	}
	return &Orchestrator{
		resolver: res,
		sampler:  smp,
		cache:    store,
		provider: prov,
		logger:   logger,
	}
}

// WithArchive attaches an optional analysis archive. Archive failures are
// logged and never fail a clip.
func (o *Orchestrator) WithArchive(a Archiver) *Orchestrator {
	o.archive = a
	return o
}

// Run processes every clip and returns the finalized report. Cancellation is
// cooperative: it is checked before each clip starts, an in-flight clip
// finishes or fails naturally, and remaining clips terminate as Cancelled
// with no decoder or network side effects.
func (o *Orchestrator) Run(ctx context.Context, clips []models.ClipRef, cfg models.ProviderConfig, opts Options) RunReport {
	report := NewRunReport()
	outcomes := make([]ClipOutcome, len(clips))

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(clips) {
		workers = len(clips)
	}

	if workers <= 1 {
		for i, c := range clips {
			outcomes[i] = o.runOne(ctx, c, cfg, opts)
		}
	} else {
		indices := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indices {
					outcomes[i] = o.runOne(ctx, clips[i], cfg, opts)
				}
			}()
		}
		for i := range clips {
			indices <- i
		}
		close(indices)
		wg.Wait()
	}

	report.Outcomes = outcomes
	report.Finalize()
	return report
}

func (o *Orchestrator) runOne(ctx context.Context, c models.ClipRef, cfg models.ProviderConfig, opts Options) ClipOutcome {
	if ctx.Err() != nil {
		return ClipOutcome{Clip: c.Name(), Status: StatusCancelled, Reason: "batch cancelled"}
	}
	outcome := o.processClip(ctx, c, cfg, opts)
	o.logger.Info("clip finished",
		"clip", outcome.Clip,
		"status", string(outcome.Status),
		"from_cache", outcome.FromCache,
		"proxy", outcome.UsedProxy,
		"reason", outcome.Reason,
	)
	return outcome
}

func (o *Orchestrator) processClip(ctx context.Context, c models.ClipRef, cfg models.ProviderConfig, opts Options) ClipOutcome {
	name := c.Name()
	outcome := ClipOutcome{Clip: name, Status: StatusResolving}

	res := o.resolver.Resolve(c, opts.CustomProxyRoot)
	if res.NeedsProxy() {
		outcome.Status = StatusSkipped
		outcome.Reason = noProxyReason(res)
		return outcome
	}
	loc := res.Location
	outcome.UsedProxy = loc.IsProxy

	// Fingerprinting stats the resolved file, so this is also the
	// readability check: an unreadable source is a skip, not a failure.
	fingerprint, err := cache.Fingerprint(loc.Path, cfg.Model, cfg.FrameCount)
	if err != nil {
		outcome.Status = StatusSkipped
		outcome.Reason = "source file not readable on disk"
		return outcome
	}

	var result models.AnalysisResult
	fromCache := false
	if !opts.Force {
		result, fromCache = o.cache.Get(fingerprint)
	}

	if !fromCache {
		outcome.Status = StatusSampling
		frames, err := o.sampler.Sample(ctx, loc.Path, cfg.FrameCount)
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Reason = fmt.Sprintf("frame extraction: %v", err)
			return outcome
		}

		outcome.Status = StatusAnalyzing
		result, err = o.provider.Analyze(ctx, frames, cfg, name)
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Reason = analysisReason(err)
			return outcome
		}

		if err := o.cache.Put(fingerprint, result); err != nil {
			// A dead cache only costs future API calls.
			o.logger.Warn("cache write failed", "clip", name, "err", err)
		}
	}
	outcome.FromCache = fromCache

	// Cache hits still merge: merging is idempotent, and re-applying keeps
	// clip metadata consistent after manual reverts.
	outcome.Status = StatusMerging
	existing := map[string]string{
		models.FieldKeywords: c.Metadata(models.FieldKeywords),
		models.FieldComments: c.Metadata(models.FieldComments),
	}
	updates := merge.Merge(existing, result)
	if len(updates) > 0 {
		if err := c.SetMetadata(updates); err != nil {
			outcome.Status = StatusFailed
			outcome.Reason = fmt.Sprintf("metadata write: %v", err)
			return outcome
		}
	}

	if o.archive != nil {
		if err := o.archive.Store(ctx, name, c.SourcePath(), fingerprint, result); err != nil {
			o.logger.Warn("archive write failed", "clip", name, "err", err)
		}
	}

	outcome.Status = StatusDone
	return outcome
}

func noProxyReason(res resolver.Resolution) string {
	if len(res.Checked) == 0 {
		return "RAW source with no linked proxy"
	}
	return fmt.Sprintf("RAW source, no proxy found (checked: %s)", strings.Join(res.Checked, ", "))
}

func analysisReason(err error) string {
	var provErr *provider.Error
	if errors.As(err, &provErr) {
		return fmt.Sprintf("analysis: %v", provErr)
	}
	var malformed *provider.MalformedResponseError
	if errors.As(err, &malformed) {
		return fmt.Sprintf("analysis: %v", malformed)
	}
	return fmt.Sprintf("analysis: %v", err)
}
