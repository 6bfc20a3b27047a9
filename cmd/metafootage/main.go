// Command metafootage enriches video clips with AI-generated descriptive
// metadata: it samples representative frames with ffmpeg, sends them to a
// vision model (Gemini, OpenAI, or a local Ollama instance), and merges the
// structured result into each clip's metadata sidecar without destroying
// prior edits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"

	"github.com/bdougie/metafootage/internal/archive"
	"github.com/bdougie/metafootage/internal/cache"
	"github.com/bdougie/metafootage/internal/clip"
	"github.com/bdougie/metafootage/internal/config"
	"github.com/bdougie/metafootage/internal/enrich"
	"github.com/bdougie/metafootage/internal/models"
	"github.com/bdougie/metafootage/internal/provider"
	"github.com/bdougie/metafootage/internal/provider/gemini"
	"github.com/bdougie/metafootage/internal/provider/ollamavision"
	"github.com/bdougie/metafootage/internal/provider/openai"
	"github.com/bdougie/metafootage/internal/resolver"
	"github.com/bdougie/metafootage/internal/sampler"
	"github.com/bdougie/metafootage/internal/transport"
)

var defaultModels = map[string]string{
	"gemini": "gemini-2.5-flash",
	"openai": "gpt-4o",
	"ollama": "llama3.2-vision:11b",
}

// mediaExtensions selects which files in a clips directory are footage.
var mediaExtensions = map[string]bool{
	".mov": true, ".mp4": true, ".mxf": true, ".avi": true, ".mkv": true,
	".braw": true, ".r3d": true, ".ari": true, ".dng": true, ".crm": true,
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "metafootage: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		clipsArg     = flag.String("clips", "", "media file, directory of media files, or comma-separated list")
		providerName = flag.String("provider", "gemini", "analysis provider: gemini, openai, or ollama")
		model        = flag.String("model", "", "model identifier (defaults per provider)")
		apiKey       = flag.String("api-key", "", "provider API key (defaults to saved config, then $METAFOOTAGE_API_KEY)")
		frames       = flag.Int("frames", 0, "frames to sample per clip (default from config, typically 5)")
		proxyRoot    = flag.String("proxy-root", "", "extra directory to search for proxies of RAW footage")
		force        = flag.Bool("force", false, "re-analyze even when a cached result exists")
		workers      = flag.Int("workers", 1, "concurrent clips (1 = sequential)")
		archiveDSN   = flag.String("archive-dsn", "", "optional Postgres DSN for the analysis archive")
		search       = flag.String("search", "", "search the archive for similar clips instead of processing")
		searchLimit  = flag.Int("limit", 10, "max results for -search")
		jsonReport   = flag.Bool("json", false, "print the run report as JSON")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := transport.NewClient(0)

	if *search != "" {
		return searchArchive(ctx, logger, httpClient, *archiveDSN, *search, *searchLimit)
	}
	if *clipsArg == "" {
		flag.Usage()
		return fmt.Errorf("no clips given")
	}

	// Saved config fills the gaps the flags leave; the effective values are
	// saved back for the next run.
	cfgPath := config.DefaultPath()
	saved := config.Load(cfgPath)
	if *apiKey == "" {
		*apiKey = saved.APIKey
	}
	if *apiKey == "" {
		*apiKey = os.Getenv("METAFOOTAGE_API_KEY")
	}
	if *frames == 0 {
		*frames = saved.FrameCount
	}
	if *proxyRoot == "" {
		*proxyRoot = saved.ProxyPath
	}
	if *model == "" {
		*model = defaultModels[strings.ToLower(*providerName)]
	}
	if *model == "" {
		return fmt.Errorf("unknown provider %q and no -model given", *providerName)
	}
	if *apiKey == "" && strings.ToLower(*providerName) != "ollama" {
		return fmt.Errorf("provider %s needs an API key", *providerName)
	}
	saved.APIKey = *apiKey
	saved.FrameCount = *frames
	saved.ProxyPath = *proxyRoot
	if err := config.Save(cfgPath, saved); err != nil {
		logger.Warn("could not save config", "path", cfgPath, "err", err)
	}

	clips, err := collectClips(*clipsArg)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return fmt.Errorf("no media files found in %q", *clipsArg)
	}
	logger.Info("starting batch", "clips", len(clips), "provider", *providerName, "model", *model)

	registry, err := provider.NewRegistry(
		gemini.New(httpClient),
		openai.New(httpClient),
		ollamavision.New(logger),
	)
	if err != nil {
		return err
	}
	prov, ok := registry.Get(*providerName)
	if !ok {
		return fmt.Errorf("unknown provider %q (have: %s)", *providerName, strings.Join(registry.Names(), ", "))
	}

	smp, err := sampler.New(logger)
	if err != nil {
		return err
	}

	store := cache.New(filepath.Join(filepath.Dir(cfgPath), "cache.json"), logger)
	store.Load()

	orchestrator := enrich.New(resolver.New(), smp, store, prov, logger)
	if *archiveDSN != "" {
		arch, err := archive.Open(ctx, *archiveDSN, archive.NewOllamaEmbedder(httpClient), logger)
		if err != nil {
			// The archive is a bonus sink; a dead database should not stop
			// a paid-for batch.
			logger.Warn("archive unavailable, continuing without it", "err", err)
		} else {
			defer arch.Close()
			orchestrator.WithArchive(arch)
		}
	}

	report := orchestrator.Run(ctx, clips, models.ProviderConfig{
		Provider:   *providerName,
		Model:      *model,
		APIKey:     *apiKey,
		FrameCount: *frames,
	}, enrich.Options{
		CustomProxyRoot: *proxyRoot,
		Force:           *force,
		Workers:         *workers,
	})

	if *jsonReport {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Print(report.String())
	}

	if report.Summary.Failed > 0 {
		return fmt.Errorf("%d clip(s) failed", report.Summary.Failed)
	}
	return nil
}

// collectClips expands the -clips argument into file-backed clip refs.
func collectClips(arg string) ([]models.ClipRef, error) {
	var paths []string
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		info, err := os.Stat(part)
		if err != nil {
			return nil, fmt.Errorf("clips path %q: %w", part, err)
		}
		if !info.IsDir() {
			paths = append(paths, part)
			continue
		}
		entries, err := os.ReadDir(part)
		if err != nil {
			return nil, fmt.Errorf("read clips dir %q: %w", part, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if mediaExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				paths = append(paths, filepath.Join(part, entry.Name()))
			}
		}
	}

	clips := make([]models.ClipRef, 0, len(paths))
	for _, p := range paths {
		clips = append(clips, clip.NewFile(p))
	}
	return clips, nil
}

// searchArchive answers a -search query against the analysis archive.
func searchArchive(ctx context.Context, logger *slog.Logger, httpClient *http.Client, dsn, query string, limit int) error {
	if dsn == "" {
		return fmt.Errorf("-search needs -archive-dsn")
	}
	arch, err := archive.Open(ctx, dsn, archive.NewOllamaEmbedder(httpClient), logger)
	if err != nil {
		return err
	}
	defer arch.Close()

	results, err := arch.SearchSimilar(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%.3f  %s  %s\n      %s\n", r.Similarity, r.ClipName, r.SourcePath, r.ShortDesc)
	}
	return nil
}
