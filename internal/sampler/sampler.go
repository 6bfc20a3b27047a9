// Package sampler extracts representative still frames from a media file by
// invoking external ffprobe/ffmpeg binaries. The tools are opaque
// collaborators: a non-zero exit or an undersized output file is a frame
// failure, never a crash.
package sampler

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// scaleWidth bounds the payload sent to the vision APIs. Height follows
	// the aspect ratio.
	scaleWidth = 960

	// minFrameBytes rejects the zero-byte or near-empty files ffmpeg
	// silently emits when a seek lands outside the stream.
	minFrameBytes = 1024
)

// SampleSet is an ordered sequence of base64-encoded JPEG frames. It may be
// shorter than the requested frame count when some extractions fail.
type SampleSet []string

// ExtractionError reports that sampling a media file failed outright:
// missing file, missing tools, unreadable duration, or zero valid frames.
type ExtractionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Sampler extracts frames across the central 80% of a clip's timeline,
// skipping the first and last 10% to avoid black leaders and trailers.
type Sampler struct {
	logger *slog.Logger

	ffmpegPath  string
	ffprobePath string

	// Hooks for tests; defaulted to the real tool invocations by New.
	probeDuration func(ctx context.Context, path string) (float64, error)
	extractFrame  func(ctx context.Context, path string, ts float64, outFile string) error
}

// New locates ffmpeg and ffprobe on PATH. Missing tools are an error here
// rather than per clip.
func New(logger *slog.Logger) (*Sampler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}
	s := &Sampler{
		logger:      logger,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
	s.probeDuration = s.runProbe
	s.extractFrame = s.runExtract
	return s, nil
}

// Sample extracts up to frameCount evenly spaced frames from path. A partial
// set is returned as long as at least one frame survives validation; zero
// valid frames is an ExtractionError. All scratch files live in a per-call
// directory that is removed on every exit path.
func (s *Sampler) Sample(ctx context.Context, path string, frameCount int) (SampleSet, error) {
	if frameCount < 1 {
		frameCount = 1
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &ExtractionError{Path: path, Reason: "file not found", Err: err}
	}

	duration, err := s.probeDuration(ctx, path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Reason: "could not determine duration", Err: err}
	}

	scratch := filepath.Join(os.TempDir(), "metafootage_"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, &ExtractionError{Path: path, Reason: "scratch dir", Err: err}
	}
	defer os.RemoveAll(scratch)

	var frames SampleSet
	for i, ts := range timestamps(duration, frameCount) {
		outFile := filepath.Join(scratch, fmt.Sprintf("frame_%d.jpg", i))
		if err := s.extractFrame(ctx, path, ts, outFile); err != nil {
			s.logger.Debug("frame extraction failed", "path", path, "ts", ts, "err", err)
			continue
		}
		data, ok := readValidFrame(outFile)
		if !ok {
			s.logger.Debug("discarding invalid frame", "path", path, "ts", ts)
			continue
		}
		frames = append(frames, base64.StdEncoding.EncodeToString(data))
	}

	if len(frames) == 0 {
		return nil, &ExtractionError{Path: path, Reason: "no valid frames extracted; file may be corrupt or unsupported"}
	}
	if len(frames) < frameCount {
		s.logger.Warn("partial frame extraction", "path", path, "got", len(frames), "want", frameCount)
	}
	return frames, nil
}

// timestamps spreads n sample points evenly across the central 80% of a
// clip; a single sample lands on the midpoint.
func timestamps(duration float64, n int) []float64 {
	if n == 1 {
		return []float64{duration / 2}
	}
	start := duration * 0.1
	end := duration * 0.9
	step := (end - start) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// readValidFrame returns the frame bytes when the file exists and exceeds
// the minimum size threshold.
func readValidFrame(path string) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() <= minFrameBytes {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *Sampler) runProbe(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, s.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable ffprobe duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	return duration, nil
}

func (s *Sampler) runExtract(ctx context.Context, path string, ts float64, outFile string) error {
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-ss", fmt.Sprintf("%.3f", ts),
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", scaleWidth),
		"-q:v", "2",
		"-y", outFile,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w (%s)", err, firstLine(output))
	}
	return nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
