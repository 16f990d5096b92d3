package core

import (
	"context"
	"time"

	"github.com/target/mmk-items-api/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations depend on these interfaces, not on the data package.

// ItemStore is the narrow store the batch engine consumes.
type ItemStore interface {
	// ListAllIDs returns the IDs of every stored item.
	ListAllIDs(ctx context.Context) ([]string, error)
	// GetByID returns the item or an error wrapping data.ErrItemNotFound.
	GetByID(ctx context.Context, id string) (*model.Item, error)
	// Save persists the item's status and returns the stored row. Other fields
	// are left as stored.
	Save(ctx context.Context, item *model.Item) (*model.Item, error)
}

// ItemRepository defines the interface for item data operations.
type ItemRepository interface {
	ItemStore
	Create(ctx context.Context, req *model.CreateItemRequest) (*model.Item, error)
	List(ctx context.Context, opts model.ItemsListOptions) ([]*model.Item, error)
	Update(ctx context.Context, id string, req model.UpdateItemRequest) (*model.Item, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// BatchRunRepository defines the interface for batch run history.
type BatchRunRepository interface {
	Create(ctx context.Context, summary *model.BatchRunSummary) error
	GetByID(ctx context.Context, id string) (*model.BatchRunSummary, error)
	List(ctx context.Context, opts model.BatchRunListOptions) ([]*model.BatchRunSummary, error)
}

// ReaperRepository defines the interface for batch history cleanup.
type ReaperRepository interface {
	// DeleteOlderThan deletes finished batch runs older than maxAge.
	// Processes up to batchSize rows per call to prevent long locks.
	// Returns the number of rows deleted.
	DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}
