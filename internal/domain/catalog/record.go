package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Record is one source catalog record: an id plus a loosely typed attribute
// bag as decoded from JSON (strings, float64, bool, []any, map[string]any).
type Record struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime time.Time      `json:"createdTime,omitempty"`
}

// ---------------------------------------------------------------------------
// SyncReport
// ---------------------------------------------------------------------------

// MaxReportedErrors bounds the sampled row error messages kept in a report.
const MaxReportedErrors = 10

// SyncOperations counts what one run did
type SyncOperations struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Skipped   int `json:"skipped"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
}

// SyncReport is the outcome of one full reconciliation pass
type SyncReport struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Operations SyncOperations `json:"operations"`
	Total      int            `json:"total"`
	Summary    string         `json:"summary"`
	Errors     []string       `json:"errors,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   string         `json:"duration"`
}

// NewSyncReport starts an empty report
func NewSyncReport(startedAt time.Time) *SyncReport {
	return &SyncReport{StartedAt: startedAt}
}

// RecordError counts a row failure and keeps its message while under the sample limit.
func (r *SyncReport) RecordError(err error) {
	r.Operations.Errors++
	if len(r.Errors) < MaxReportedErrors {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Finish marks the run complete and renders the summary line.
func (r *SyncReport) Finish(finishedAt time.Time) {
	r.Success = true
	r.Message = "Sync completed"
	r.Duration = finishedAt.Sub(r.StartedAt).String()

	ops := r.Operations
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d created, %d updated, %d deleted, %d skipped", ops.Created, ops.Updated, ops.Deleted, ops.Skipped)
	if ops.Errors > 0 {
		fmt.Fprintf(&sb, ", %d errors", ops.Errors)
	}
	r.Summary = sb.String()
}
