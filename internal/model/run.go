package model

import "time"

// RunResult is the outcome of one daily calculation run. The first five
// JSON fields form the invocation contract returned to callers.
type RunResult struct {
	Success         bool     `json:"success"`
	TargetDate      string   `json:"target_date"`
	RecordsInserted int      `json:"records_inserted"`
	RecordsUpdated  int      `json:"records_updated"`
	Errors          []string `json:"errors"`

	RunID     string        `json:"run_id,omitempty"`
	Symbols   int           `json:"symbols"`
	Computed  int           `json:"computed"`
	Skipped   int           `json:"skipped"`
	Breadth   *Breadth      `json:"breadth,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Persisted returns the number of rows written by the run.
func (r *RunResult) Persisted() int {
	return r.RecordsInserted + r.RecordsUpdated
}
