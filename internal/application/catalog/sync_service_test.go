package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/cache"
)

// memoryMirror is an in-memory catalog.MirrorRepository that counts writes
type memoryMirror struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*catalog.Product
	creates int
	updates int
	deletes int

	failCreate map[string]error
}

func newMemoryMirror() *memoryMirror {
	return &memoryMirror{rows: make(map[uuid.UUID]*catalog.Product), failCreate: make(map[string]error)}
}

func (m *memoryMirror) ListBySource(ctx context.Context, system catalog.SourceSystem) ([]catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalog.Product
	for _, p := range m.rows {
		if p.SourceID(system) != "" {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (m *memoryMirror) FindBySourceID(ctx context.Context, system catalog.SourceSystem, sourceID string) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.SourceID(system) == sourceID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

func (m *memoryMirror) FindByHandle(ctx context.Context, handle string) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.Handle == handle {
			cp := *p
			return &cp, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

func (m *memoryMirror) List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int64, error) {
	rows, _ := m.ListBySource(ctx, catalog.SourceAirtable)
	return rows, int64(len(rows)), nil
}

func (m *memoryMirror) Create(ctx context.Context, product *catalog.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failCreate[product.Handle]; ok {
		return err
	}
	product.ID = uuid.New()
	cp := *product
	m.rows[product.ID] = &cp
	m.creates++
	return nil
}

func (m *memoryMirror) Update(ctx context.Context, product *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[product.ID]; !ok {
		return catalog.ErrProductNotFound
	}
	cp := *product
	m.rows[product.ID] = &cp
	m.updates++
	return nil
}

func (m *memoryMirror) DeleteBySourceIDs(ctx context.Context, system catalog.SourceSystem, sourceIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	var n int64
	for _, id := range sourceIDs {
		for key, p := range m.rows {
			if p.SourceID(system) == id {
				delete(m.rows, key)
				n++
			}
		}
	}
	return n, nil
}

// staticSource serves a fixed record list
type staticSource struct {
	records []catalog.Record
	err     error
}

func (s *staticSource) ListAll(ctx context.Context) ([]catalog.Record, error) {
	return s.records, s.err
}

// MockSyncRecorder is a mock implementation of SyncRecorder
type MockSyncRecorder struct {
	mock.Mock
}

func (m *MockSyncRecorder) RecordSyncRun(ctx context.Context, ops catalog.SyncOperations, duration time.Duration, err error) {
	m.Called(ctx, ops, duration, err)
}

func record(id, handle, title string) catalog.Record {
	fields := map[string]any{}
	if handle != "" {
		fields["Handle"] = handle
	}
	if title != "" {
		fields["Title"] = title
	}
	return catalog.Record{ID: id, Fields: fields}
}

func newTestSyncService(source catalog.Source, repo catalog.MirrorRepository, opts ...SyncServiceOption) *SyncService {
	return NewSyncService(source, repo, cache.NewInMemoryRunLock(), zap.NewNop(), opts...)
}

func TestSyncService_CreatesAndSkips(t *testing.T) {
	repo := newMemoryMirror()
	source := &staticSource{records: []catalog.Record{
		record("recA", "linen-shirt", "Linen Shirt"),
		record("recB", "", "No Handle"),
	}}

	report, err := newTestSyncService(source, repo).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, "Sync completed", report.Message)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Operations.Created)
	assert.Equal(t, 1, report.Operations.Skipped)
	assert.Equal(t, 0, report.Operations.Updated)
	assert.Equal(t, 0, report.Operations.Deleted)
	assert.Equal(t, "1 created, 0 updated, 0 deleted, 1 skipped", report.Summary)

	rows, _ := repo.ListBySource(context.Background(), catalog.SourceAirtable)
	require.Len(t, rows, 1)
	assert.Equal(t, "recA", rows[0].AirtableRecordID)
}

func TestSyncService_SecondRunIsNoop(t *testing.T) {
	repo := newMemoryMirror()
	source := &staticSource{records: []catalog.Record{
		record("rec1", "a", "A"),
		record("rec2", "b", "B"),
		record("rec3", "c", "C"),
	}}
	svc := newTestSyncService(source, repo)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Operations.Created)
	assert.Equal(t, 0, report.Operations.Updated)
	assert.Equal(t, 0, report.Operations.Deleted)
	assert.Equal(t, 3, report.Operations.Unchanged)
	assert.Equal(t, 3, repo.creates)
	assert.Equal(t, 0, repo.updates)
	assert.Equal(t, 0, repo.deletes)
}

func TestSyncService_UpdatesChangedRows(t *testing.T) {
	repo := newMemoryMirror()
	source := &staticSource{records: []catalog.Record{record("rec1", "a", "A")}}
	svc := newTestSyncService(source, repo)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	before, err := repo.FindBySourceID(context.Background(), catalog.SourceAirtable, "rec1")
	require.NoError(t, err)

	source.records = []catalog.Record{record("rec1", "a", "A renamed")}
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Operations.Updated)

	after, err := repo.FindBySourceID(context.Background(), catalog.SourceAirtable, "rec1")
	require.NoError(t, err)
	assert.Equal(t, "A renamed", after.Title)
	assert.Equal(t, before.ID, after.ID)
}

func TestSyncService_DeletesRemovedRecords(t *testing.T) {
	repo := newMemoryMirror()
	source := &staticSource{records: []catalog.Record{
		record("rec1", "a", "A"),
		record("rec2", "b", "B"),
		record("rec3", "c", "C"),
	}}
	svc := newTestSyncService(source, repo)
	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	source.records = []catalog.Record{record("rec1", "a", "A"), record("rec3", "c", "C")}
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Operations.Deleted)

	_, err = repo.FindBySourceID(context.Background(), catalog.SourceAirtable, "rec2")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	rows, _ := repo.ListBySource(context.Background(), catalog.SourceAirtable)
	assert.Len(t, rows, 2)
}

func TestSyncService_SkippedRecordKeepsExistingRow(t *testing.T) {
	repo := newMemoryMirror()
	source := &staticSource{records: []catalog.Record{record("rec1", "a", "A")}}
	svc := newTestSyncService(source, repo)
	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	// the title was cleared at the source; the row is neither updated nor deleted
	source.records = []catalog.Record{record("rec1", "a", "")}
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Operations.Skipped)
	assert.Equal(t, 0, report.Operations.Deleted)

	row, err := repo.FindBySourceID(context.Background(), catalog.SourceAirtable, "rec1")
	require.NoError(t, err)
	assert.Equal(t, "A", row.Title)
}

func TestSyncService_RowFailureDoesNotAbort(t *testing.T) {
	repo := newMemoryMirror()
	repo.failCreate["broken"] = errors.New("unique violation")
	source := &staticSource{records: []catalog.Record{
		record("rec1", "broken", "Broken"),
		record("rec2", "fine", "Fine"),
	}}

	report, err := newTestSyncService(source, repo).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 1, report.Operations.Created)
	assert.Equal(t, 1, report.Operations.Errors)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "rec1")
	assert.Contains(t, report.Summary, ", 1 errors")
}

func TestSyncService_ErrorSampleIsBounded(t *testing.T) {
	repo := newMemoryMirror()
	var records []catalog.Record
	for i := 0; i < catalog.MaxReportedErrors+5; i++ {
		handle := fmt.Sprintf("h-%d", i)
		repo.failCreate[handle] = errors.New("boom")
		records = append(records, record(fmt.Sprintf("rec%d", i), handle, "T"))
	}

	report, err := newTestSyncService(&staticSource{records: records}, repo).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.MaxReportedErrors+5, report.Operations.Errors)
	assert.Len(t, report.Errors, catalog.MaxReportedErrors)
}

func TestSyncService_EnumerationFailure(t *testing.T) {
	repo := newMemoryMirror()
	_, err := repo.ListBySource(context.Background(), catalog.SourceAirtable)
	require.NoError(t, err)

	t.Run("plain error becomes remote error", func(t *testing.T) {
		source := &staticSource{err: errors.New("connection reset")}
		report, err := newTestSyncService(source, repo).Run(context.Background())
		assert.Nil(t, report)
		var remoteErr *shared.RemoteError
		require.True(t, errors.As(err, &remoteErr))
		assert.Equal(t, "list records", remoteErr.Op)
	})

	t.Run("remote error passes through", func(t *testing.T) {
		upstream := &shared.RemoteError{Service: "airtable", Op: "list records", StatusCode: 401}
		_, err := newTestSyncService(&staticSource{err: upstream}, repo).Run(context.Background())
		assert.Same(t, upstream, err)
	})

	assert.Zero(t, repo.creates)
	assert.Zero(t, repo.deletes)
}

func TestSyncService_RejectsOverlappingRuns(t *testing.T) {
	lock := cache.NewInMemoryRunLock()
	release, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)
	defer release()

	svc := NewSyncService(&staticSource{}, newMemoryMirror(), lock, nil)
	_, err = svc.Run(context.Background())
	assert.ErrorIs(t, err, catalog.ErrSyncInProgress)
}

func TestSyncService_RecordsMetrics(t *testing.T) {
	recorder := new(MockSyncRecorder)
	recorder.On("RecordSyncRun", mock.Anything,
		catalog.SyncOperations{Created: 1},
		mock.AnythingOfType("time.Duration"),
		nil,
	).Once()

	source := &staticSource{records: []catalog.Record{record("rec1", "a", "A")}}
	_, err := newTestSyncService(source, newMemoryMirror(), WithSyncRecorder(recorder)).Run(context.Background())
	require.NoError(t, err)
	recorder.AssertExpectations(t)
}

func TestSyncService_ReportTimestamps(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		now := start.Add(time.Duration(calls) * 750 * time.Millisecond)
		calls++
		return now
	}
	source := &staticSource{records: []catalog.Record{record("rec1", "a", "A")}}

	report, err := newTestSyncService(source, newMemoryMirror(), WithClock(clock)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, start, report.StartedAt)
	assert.Equal(t, "750ms", report.Duration)
}
