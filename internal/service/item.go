package service

import (
	"context"
	"errors"

	"github.com/target/mmk-items-api/internal/core"
	"github.com/target/mmk-items-api/internal/domain/model"
)

const (
	defaultItemsPageSize = 50
	maxItemsPageSize     = 1000
)

// ItemServiceOptions groups dependencies for ItemService.
type ItemServiceOptions struct {
	Repo core.ItemRepository // Required; usually a *core.CachedItemStore
}

// ItemService orchestrates item CRUD.
type ItemService struct {
	items core.ItemRepository
}

// NewItemService constructs a new ItemService.
func NewItemService(opts ItemServiceOptions) (*ItemService, error) {
	if opts.Repo == nil {
		return nil, errors.New("item repository is required")
	}
	return &ItemService{items: opts.Repo}, nil
}

// Create validates and stores a new item.
func (s *ItemService) Create(ctx context.Context, req *model.CreateItemRequest) (*model.Item, error) {
	if req == nil {
		return nil, errors.New("create request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.items.Create(ctx, req)
}

// GetByID retrieves an item by ID.
func (s *ItemService) GetByID(ctx context.Context, id string) (*model.Item, error) {
	return s.items.GetByID(ctx, id)
}

// List returns a page of items in creation order.
func (s *ItemService) List(ctx context.Context, opts model.ItemsListOptions) ([]*model.Item, error) {
	return s.items.List(ctx, normalizeItemListOptions(opts))
}

// Update replaces every mutable field of an item.
func (s *ItemService) Update(ctx context.Context, id string, req model.UpdateItemRequest) (*model.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.items.Update(ctx, id, req)
}

// Delete removes an item. It reports false when nothing was deleted.
func (s *ItemService) Delete(ctx context.Context, id string) (bool, error) {
	return s.items.Delete(ctx, id)
}

func normalizeItemListOptions(opts model.ItemsListOptions) model.ItemsListOptions {
	if opts.Limit <= 0 {
		opts.Limit = defaultItemsPageSize
	}
	opts.Limit = min(opts.Limit, maxItemsPageSize)
	opts.Offset = max(opts.Offset, 0)
	return opts
}
