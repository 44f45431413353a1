package catalog

import (
	"context"
)

// ProductFilter narrows a mirror listing
type ProductFilter struct {
	Status    Status
	Source    SourceSystem
	Published *bool
	Search    string
	Page      int
	PageSize  int
	OrderBy   string
	OrderDir  string
}

// MirrorRepository defines persistence for the products mirror table
type MirrorRepository interface {
	// ListBySource returns every mirror row keyed by the given source system
	ListBySource(ctx context.Context, system SourceSystem) ([]Product, error)

	// FindBySourceID finds one row by its source key, ErrProductNotFound when absent
	FindBySourceID(ctx context.Context, system SourceSystem, sourceID string) (*Product, error)

	// FindByHandle finds one row by handle, ErrProductNotFound when absent
	FindByHandle(ctx context.Context, handle string) (*Product, error)

	// List returns a page of rows and the total matching count
	List(ctx context.Context, filter ProductFilter) ([]Product, int64, error)

	// Create inserts a new row
	Create(ctx context.Context, product *Product) error

	// Update overwrites an existing row in place
	Update(ctx context.Context, product *Product) error

	// DeleteBySourceIDs bulk deletes rows by source key and returns the number removed
	DeleteBySourceIDs(ctx context.Context, system SourceSystem, sourceIDs []string) (int64, error)
}

// Source enumerates the full source catalog
type Source interface {
	// ListAll follows pagination until exhausted and returns records in source order
	ListAll(ctx context.Context) ([]Record, error)
}

// RunLock serializes sync runs against the same mirror table
type RunLock interface {
	// TryAcquire returns ErrSyncInProgress when another run holds the lock
	TryAcquire(ctx context.Context) (release func(), err error)
}
