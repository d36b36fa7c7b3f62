package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MaxRecordedOutputLength is the max length of stderr kept in a record.
const MaxRecordedOutputLength = 2000

// Record is one finished invocation.
type Record struct {
	Command    Command       `json:"command"`
	Duration   time.Duration `json:"duration"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Recorder wraps a Runner, logging and recording every invocation.
type Recorder struct {
	inner  Runner
	logger *slog.Logger

	mu      sync.Mutex
	records []Record
}

// NewRecorder wraps inner. A nil logger uses slog.Default().
func NewRecorder(inner Runner, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{inner: inner, logger: logger}
}

// Run runs cmd with the inner runner and records the outcome.
func (r *Recorder) Run(ctx context.Context, cmd Command) (Result, error) {
	r.logger.Debug("Running command", "command", cmd.String(), "dir", cmd.Dir)

	startedAt := time.Now()
	res, err := r.inner.Run(ctx, cmd)
	finishedAt := time.Now()

	rec := Record{
		Command:    cmd,
		Duration:   finishedAt.Sub(startedAt),
		Status:     "success",
		Stderr:     truncate(res.Stderr, MaxRecordedOutputLength),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if err != nil {
		rec.Status = "error"
		rec.Error = err.Error()
		r.logger.Warn("Command failed", "command", cmd.Name, "duration", rec.Duration, "error", err)
	} else {
		r.logger.Debug("Command finished", "command", cmd.Name, "duration", rec.Duration)
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	return res, err
}

// Records returns a copy of the recorded invocations, in order.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...[truncated]"
}
