// Package catalog reconciles the products mirror table against its sources.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/telemetry"
)

// SyncRecorder receives the outcome of each sync run
type SyncRecorder interface {
	RecordSyncRun(ctx context.Context, ops catalog.SyncOperations, duration time.Duration, err error)
}

// SyncServiceOption configures a SyncService
type SyncServiceOption func(*SyncService)

// WithSyncRecorder attaches a metrics recorder
func WithSyncRecorder(recorder SyncRecorder) SyncServiceOption {
	return func(s *SyncService) {
		s.recorder = recorder
	}
}

// WithClock overrides the time source used for report timestamps
func WithClock(now func() time.Time) SyncServiceOption {
	return func(s *SyncService) {
		s.now = now
	}
}

// SyncService performs a full one-way reconciliation of the Airtable
// products table into the mirror. Rows are keyed by airtable_record_id.
type SyncService struct {
	source   catalog.Source
	repo     catalog.MirrorRepository
	lock     catalog.RunLock
	logger   *zap.Logger
	recorder SyncRecorder
	now      func() time.Time
}

// NewSyncService creates a new SyncService
func NewSyncService(
	source catalog.Source,
	repo catalog.MirrorRepository,
	lock catalog.RunLock,
	logger *zap.Logger,
	opts ...SyncServiceOption,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SyncService{
		source: source,
		repo:   repo,
		lock:   lock,
		logger: logger.Named("catalog_sync"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one reconciliation pass. Row failures are recorded in the
// report and never abort the run. A failure to enumerate the source aborts
// before any write and is returned as a *shared.RemoteError.
func (s *SyncService) Run(ctx context.Context) (*catalog.SyncReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog_sync", "run", "source", string(catalog.SourceAirtable))
	defer span.End()

	release, err := s.lock.TryAcquire(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	started := s.now()
	report, err := s.run(ctx, started)
	duration := s.now().Sub(started)

	if s.recorder != nil {
		var ops catalog.SyncOperations
		if report != nil {
			ops = report.Operations
		}
		s.recorder.RecordSyncRun(ctx, ops, duration, err)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("catalog sync failed", zap.Duration("duration", duration), zap.Error(err))
		return nil, err
	}
	telemetry.SetAttributes(span,
		"records", report.Total,
		"created", report.Operations.Created,
		"updated", report.Operations.Updated,
		"deleted", report.Operations.Deleted,
		"errors", report.Operations.Errors,
	)

	s.logger.Info("catalog sync completed",
		zap.Int("total", report.Total),
		zap.Int("created", report.Operations.Created),
		zap.Int("updated", report.Operations.Updated),
		zap.Int("deleted", report.Operations.Deleted),
		zap.Int("skipped", report.Operations.Skipped),
		zap.Int("unchanged", report.Operations.Unchanged),
		zap.Int("errors", report.Operations.Errors),
		zap.Duration("duration", duration),
	)
	return report, nil
}

func (s *SyncService) run(ctx context.Context, started time.Time) (*catalog.SyncReport, error) {
	records, err := s.source.ListAll(ctx)
	if err != nil {
		return nil, asRemoteError(err)
	}

	existing, err := s.repo.ListBySource(ctx, catalog.SourceAirtable)
	if err != nil {
		return nil, fmt.Errorf("load mirror rows: %w", err)
	}
	mirror := make(map[string]*catalog.Product, len(existing))
	for i := range existing {
		mirror[existing[i].AirtableRecordID] = &existing[i]
	}

	report := catalog.NewSyncReport(started)
	report.Total = len(records)

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.ID != "" {
			seen[rec.ID] = struct{}{}
		}
		s.syncRecord(ctx, rec, mirror, report)
	}

	var missing []string
	for i := range existing {
		if _, ok := seen[existing[i].AirtableRecordID]; !ok {
			missing = append(missing, existing[i].AirtableRecordID)
		}
	}
	if len(missing) > 0 {
		deleted, err := s.repo.DeleteBySourceIDs(ctx, catalog.SourceAirtable, missing)
		report.Operations.Deleted = int(deleted)
		if err != nil {
			report.RecordError(&shared.RowError{
				RecordID: fmt.Sprintf("%d records", len(missing)),
				Op:       "delete",
				Err:      err,
			})
		}
	}

	report.Finish(s.now())
	return report, nil
}

// syncRecord writes one source record. Unchanged rows are not rewritten.
func (s *SyncService) syncRecord(ctx context.Context, rec catalog.Record, mirror map[string]*catalog.Product, report *catalog.SyncReport) {
	row, err := catalog.Normalize(rec)
	if err != nil {
		if isSkippable(err) {
			report.Operations.Skipped++
			s.logger.Debug("skipping record", zap.String("record_id", rec.ID), zap.Error(err))
			return
		}
		report.RecordError(&shared.RowError{RecordID: rec.ID, Op: "normalize", Err: err})
		return
	}

	current, ok := mirror[rec.ID]
	if !ok {
		if err := s.repo.Create(ctx, row); err != nil {
			s.logger.Warn("failed to create mirror row", zap.String("record_id", rec.ID), zap.Error(err))
			report.RecordError(&shared.RowError{RecordID: rec.ID, Op: "create", Err: err})
			return
		}
		mirror[rec.ID] = row
		report.Operations.Created++
		return
	}

	if current.SameContent(row) {
		report.Operations.Unchanged++
		return
	}

	next := *current
	next.CopyContentFrom(row)
	if err := s.repo.Update(ctx, &next); err != nil {
		s.logger.Warn("failed to update mirror row", zap.String("record_id", rec.ID), zap.Error(err))
		report.RecordError(&shared.RowError{RecordID: rec.ID, Op: "update", Err: err})
		return
	}
	*current = next
	report.Operations.Updated++
}

func isSkippable(err error) bool {
	return errors.Is(err, catalog.ErrMissingHandle) ||
		errors.Is(err, catalog.ErrMissingTitle) ||
		errors.Is(err, catalog.ErrMissingSourceID)
}

func asRemoteError(err error) error {
	var remoteErr *shared.RemoteError
	if errors.As(err, &remoteErr) {
		return err
	}
	return &shared.RemoteError{Service: "catalog source", Op: "list records", Err: err}
}
