package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/omop2owl/tools/runner"
)

// Result describes one produced ontology: a partition or the single batch.
type Result struct {
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	TemplatePath string        `json:"template_path"`
	DBPath       string        `json:"db_path,omitempty"`
	PreviewPath  string        `json:"preview_path,omitempty"`
	Concepts     int           `json:"concepts"`
	CachedOWL    bool          `json:"cached_owl"`
	Duration     time.Duration `json:"duration"`
	Err          error         `json:"-"`
	Error        string        `json:"error,omitempty"`

	// DBErr is a SemanticSQL failure. The OWL output is kept.
	DBErr   error  `json:"-"`
	DBError string `json:"db_error,omitempty"`
}

// OK reports whether the output was produced. Decoded reports only carry
// the error text.
func (r Result) OK() bool {
	return r.Err == nil && r.Error == ""
}

func (r *Result) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}

func (r *Result) failDB(err error) {
	r.DBPath = ""
	r.DBErr = err
	r.DBError = err.Error()
}

// DBFailed reports whether the SemanticSQL conversion of the output failed.
func (r Result) DBFailed() bool {
	return r.DBErr != nil || r.DBError != ""
}

// Report summarizes a run.
type Report struct {
	RunID      string          `json:"run_id"`
	Mode       Mode            `json:"mode"`
	OntologyID string          `json:"ontology_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Concepts   int             `json:"concepts"`
	Edges      map[string]int  `json:"edges,omitempty"`
	Output     *Result         `json:"output,omitempty"`
	Partitions []Result        `json:"partitions,omitempty"`
	MergedPath string          `json:"merged_path,omitempty"`
	DBPath     string          `json:"db_path,omitempty"`
	CacheHits  []string        `json:"cache_hits,omitempty"`
	Tools      []runner.Record `json:"tools,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func newReport(opts Options) *Report {
	return &Report{
		RunID:      uuid.New().String(),
		Mode:       opts.Mode,
		OntologyID: opts.OntologyID,
		StartedAt:  time.Now().UTC(),
		Edges:      make(map[string]int),
	}
}

// Skipped returns the names of the partitions that failed, in order.
func (r *Report) Skipped() []string {
	var out []string
	for _, p := range r.Partitions {
		if !p.OK() {
			out = append(out, p.Name)
		}
	}
	return out
}

// DBFailed returns the names of the partitions whose OWL was produced but
// whose SemanticSQL conversion failed, in order.
func (r *Report) DBFailed() []string {
	var out []string
	for _, p := range r.Partitions {
		if p.OK() && p.DBFailed() {
			out = append(out, p.Name)
		}
	}
	return out
}

// Succeeded returns the partitions that produced an ontology, in order.
func (r *Report) Succeeded() []Result {
	var out []Result
	for _, p := range r.Partitions {
		if p.OK() {
			out = append(out, p)
		}
	}
	return out
}

// Duration returns the run duration.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) cacheHit(path string) {
	r.CacheHits = append(r.CacheHits, path)
}

// JSON returns the indented JSON encoding of the report.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// WriteFile writes the report as JSON to path.
func (r *Report) WriteFile(path string) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
