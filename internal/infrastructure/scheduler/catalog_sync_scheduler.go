package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
)

// ---------------------------------------------------------------------------
// Sync Job Types
// ---------------------------------------------------------------------------

// SyncJobStatus represents the status of a catalog sync job
type SyncJobStatus string

const (
	SyncJobStatusPending SyncJobStatus = "PENDING"
	SyncJobStatusRunning SyncJobStatus = "RUNNING"
	SyncJobStatusSuccess SyncJobStatus = "SUCCESS"
	SyncJobStatusPartial SyncJobStatus = "PARTIAL"
	SyncJobStatusFailed  SyncJobStatus = "FAILED"
	SyncJobStatusSkipped SyncJobStatus = "SKIPPED"
)

// Job triggers
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
)

// SyncJob is one scheduled catalog sync run
type SyncJob struct {
	ID          uuid.UUID
	Trigger     string
	Status      SyncJobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	Report      *catalog.SyncReport
}

// NewSyncJob creates a pending job
func NewSyncJob(trigger string) *SyncJob {
	return &SyncJob{
		ID:      uuid.New(),
		Trigger: trigger,
		Status:  SyncJobStatusPending,
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the report. Row errors make the job partial.
func (j *SyncJob) Complete(report *catalog.SyncReport) {
	now := time.Now()
	j.CompletedAt = &now
	j.Report = report
	if report != nil && report.Operations.Errors > 0 {
		j.Status = SyncJobStatusPartial
		return
	}
	j.Status = SyncJobStatusSuccess
}

// Fail marks the job as failed
func (j *SyncJob) Fail(err string) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// Skip marks a job that found another run holding the lock
func (j *SyncJob) Skip() {
	now := time.Now()
	j.Status = SyncJobStatusSkipped
	j.CompletedAt = &now
}

// ---------------------------------------------------------------------------
// CatalogSyncer Interface
// ---------------------------------------------------------------------------

// CatalogSyncer runs one catalog reconciliation pass
type CatalogSyncer interface {
	Run(ctx context.Context) (*catalog.SyncReport, error)
}

// ---------------------------------------------------------------------------
// CatalogSyncSchedulerConfig
// ---------------------------------------------------------------------------

// CatalogSyncSchedulerConfig holds configuration for the catalog sync scheduler
type CatalogSyncSchedulerConfig struct {
	// Interval between runs; zero disables periodic runs
	Interval time.Duration
	// RunOnStart triggers one run right after Start
	RunOnStart bool
	// JobTimeout is the maximum time a run can take
	JobTimeout time.Duration
	// MaxHistory bounds the in-memory job history
	MaxHistory int
}

// DefaultCatalogSyncSchedulerConfig returns default configuration
func DefaultCatalogSyncSchedulerConfig() CatalogSyncSchedulerConfig {
	return CatalogSyncSchedulerConfig{
		JobTimeout: 10 * time.Minute,
		MaxHistory: 50,
	}
}

// Validate validates the configuration
func (c *CatalogSyncSchedulerConfig) Validate() error {
	if c.Interval < 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxHistory < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// CatalogSyncScheduler
// ---------------------------------------------------------------------------

// CatalogSyncScheduler triggers catalog sync runs periodically and on demand.
// A single worker executes jobs, so runs never overlap within one process.
type CatalogSyncScheduler struct {
	config CatalogSyncSchedulerConfig
	syncer CatalogSyncer
	logger *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	historyMu sync.RWMutex
	history   []*SyncJob
}

// NewCatalogSyncScheduler creates a new catalog sync scheduler
func NewCatalogSyncScheduler(config CatalogSyncSchedulerConfig, syncer CatalogSyncer, logger *zap.Logger) (*CatalogSyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxHistory == 0 {
		config.MaxHistory = DefaultCatalogSyncSchedulerConfig().MaxHistory
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CatalogSyncScheduler{
		config:  config,
		syncer:  syncer,
		logger:  logger.Named("catalog_sync_scheduler"),
		jobs:    make(chan *SyncJob, 1),
		history: make([]*SyncJob, 0, config.MaxHistory),
	}, nil
}

// Start starts the worker and, when an interval is configured, the ticker
func (s *CatalogSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.worker(ctx)

	if s.config.Interval > 0 {
		s.wg.Add(1)
		go s.tick(ctx)
	}

	if s.config.RunOnStart {
		s.submit(NewSyncJob(TriggerStartup))
	}

	s.logger.Info("Catalog sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_start", s.config.RunOnStart),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *CatalogSyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Catalog sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Catalog sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler has been started
func (s *CatalogSyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Trigger queues a manual run. It fails with ErrJobQueueFull while another
// run is already pending.
func (s *CatalogSyncScheduler) Trigger() (*SyncJob, error) {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil, ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	job := NewSyncJob(TriggerManual)
	if !s.submit(job) {
		return nil, ErrJobQueueFull
	}
	return job, nil
}

func (s *CatalogSyncScheduler) submit(job *SyncJob) bool {
	select {
	case s.jobs <- job:
		s.logger.Debug("Catalog sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("trigger", job.Trigger),
		)
		return true
	default:
		s.logger.Debug("Catalog sync job dropped, another run is pending",
			zap.String("trigger", job.Trigger),
		)
		return false
	}
}

func (s *CatalogSyncScheduler) tick(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.submit(NewSyncJob(TriggerInterval))
		}
	}
}

func (s *CatalogSyncScheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.processJob(ctx, job)
		}
	}
}

// processJob executes a single job
func (s *CatalogSyncScheduler) processJob(ctx context.Context, job *SyncJob) {
	job.Start()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	report, err := s.syncer.Run(jobCtx)
	switch {
	case errors.Is(err, catalog.ErrSyncInProgress):
		job.Skip()
		s.logger.Info("Catalog sync skipped, another run holds the lock",
			zap.String("job_id", job.ID.String()),
			zap.String("trigger", job.Trigger),
		)
	case err != nil:
		job.Fail(err.Error())
		s.logger.Error("Catalog sync job failed",
			zap.String("job_id", job.ID.String()),
			zap.String("trigger", job.Trigger),
			zap.Error(err),
		)
	default:
		job.Complete(report)
		s.logger.Info("Catalog sync job completed",
			zap.String("job_id", job.ID.String()),
			zap.String("trigger", job.Trigger),
			zap.String("status", string(job.Status)),
			zap.String("summary", report.Summary),
		)
	}

	s.addToHistory(job)
}

// addToHistory adds a finished job to history
func (s *CatalogSyncScheduler) addToHistory(job *SyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*SyncJob{job}, s.history...)
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[:s.config.MaxHistory]
	}
}

// GetJobHistory returns recent jobs, newest first
func (s *CatalogSyncScheduler) GetJobHistory(limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*SyncJob, limit)
	copy(result, s.history[:limit])
	return result
}
