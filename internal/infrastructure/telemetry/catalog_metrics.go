package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
)

// ErrMeterNil is returned when a metrics constructor receives no meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// Sync run outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// CatalogSyncMetrics records catalog sync runs.
//
//	catalog_sync_rows_total{op}            rows per operation (created, updated, ...)
//	catalog_sync_runs_total{outcome}       runs per outcome
//	catalog_sync_duration_seconds{outcome} run duration
type CatalogSyncMetrics struct {
	rows     *Counter
	runs     *Counter
	duration *Histogram
}

// NewCatalogSyncMetrics registers the sync instruments on meter
func NewCatalogSyncMetrics(meter metric.Meter) (*CatalogSyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	rows, err := NewCounter(meter, "catalog_sync_rows_total", "Mirror rows touched by catalog sync, by operation", "{row}")
	if err != nil {
		return nil, err
	}
	runs, err := NewCounter(meter, "catalog_sync_runs_total", "Catalog sync runs, by outcome", "{run}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, "catalog_sync_duration_seconds", "Catalog sync run duration", "s", SyncDurationBuckets...)
	if err != nil {
		return nil, err
	}

	return &CatalogSyncMetrics{rows: rows, runs: runs, duration: duration}, nil
}

// RecordSyncRun records the outcome of one run
func (m *CatalogSyncMetrics) RecordSyncRun(ctx context.Context, ops catalog.SyncOperations, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, catalog.ErrSyncInProgress):
		outcome = OutcomeSkipped
	case err != nil:
		outcome = OutcomeFailure
	}

	m.runs.Add(ctx, 1, AttrSyncOutcome.String(outcome))
	m.duration.RecordDuration(ctx, duration, AttrSyncOutcome.String(outcome))
	if err != nil {
		return
	}

	for op, n := range map[string]int{
		"created":   ops.Created,
		"updated":   ops.Updated,
		"deleted":   ops.Deleted,
		"skipped":   ops.Skipped,
		"unchanged": ops.Unchanged,
		"errors":    ops.Errors,
	} {
		if n > 0 {
			m.rows.Add(ctx, int64(n), AttrSyncOp.String(op))
		}
	}
}
