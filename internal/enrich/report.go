package enrich

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClipOutcome is the terminal record for one clip in a run.
type ClipOutcome struct {
	Clip      string     `json:"clip"`
	Status    ClipStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	UsedProxy bool       `json:"used_proxy,omitempty"`
	FromCache bool       `json:"from_cache,omitempty"`
}

// RunReport summarizes a whole batch.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Summary    ReportSummary `json:"summary"`
	Outcomes   []ClipOutcome `json:"outcomes"`
}

type ReportSummary struct {
	Done      int `json:"done"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

func NewRunReport() RunReport {
	return RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// Finalize stamps the end time, normalizes to UTC, and computes the summary
// from the outcomes.
func (r *RunReport) Finalize() {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	var s ReportSummary
	for _, outcome := range r.Outcomes {
		switch outcome.Status {
		case StatusDone:
			s.Done++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	r.Summary = s
}

// String renders a human-readable summary for terminal output.
func (r RunReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d done, %d skipped, %d failed, %d cancelled\n",
		r.RunID, r.Summary.Done, r.Summary.Skipped, r.Summary.Failed, r.Summary.Cancelled)
	for _, outcome := range r.Outcomes {
		if outcome.Status == StatusDone {
			continue
		}
		fmt.Fprintf(&b, "  %s: %s", outcome.Clip, outcome.Status)
		if outcome.Reason != "" {
			fmt.Fprintf(&b, " (%s)", outcome.Reason)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
