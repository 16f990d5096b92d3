// Package core defines the ports of the items service and the cache-aware item store.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/target/mmk-items-api/internal/domain/model"
)

// CacheRepository defines the interface for caching operations.
// The core defines the interface and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// ItemCacheKeyPrefix namespaces cached items in Redis.
const ItemCacheKeyPrefix = "item:record:"

// ItemCacheConfig holds configuration for item caching.
type ItemCacheConfig struct {
	TTL time.Duration
}

// DefaultItemCacheConfig returns an ItemCacheConfig with sensible defaults.
func DefaultItemCacheConfig() ItemCacheConfig {
	return ItemCacheConfig{TTL: 5 * time.Minute}
}

// CachedItemStoreOptions bundles dependencies for NewCachedItemStore.
type CachedItemStoreOptions struct {
	Repo   ItemRepository
	Cache  CacheRepository
	Config ItemCacheConfig
	Logger *slog.Logger
}

// CachedItemStore decorates an ItemRepository with a read-through, write-through cache.
// Cache failures are logged and never fail the underlying operation.
type CachedItemStore struct {
	repo   ItemRepository
	cache  CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

var _ ItemRepository = (*CachedItemStore)(nil)

// NewCachedItemStore creates a CachedItemStore. A nil cache yields a pass-through store.
func NewCachedItemStore(opts CachedItemStoreOptions) (*CachedItemStore, error) {
	if opts.Repo == nil {
		return nil, errors.New("item repository is required")
	}
	ttl := opts.Config.TTL
	if ttl <= 0 {
		ttl = DefaultItemCacheConfig().TTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedItemStore{
		repo:   opts.Repo,
		cache:  opts.Cache,
		ttl:    ttl,
		logger: logger.With("component", "item_cache"),
	}, nil
}

// ListAllIDs always reads from the repository so snapshots are authoritative.
func (s *CachedItemStore) ListAllIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListAllIDs(ctx)
}

// GetByID returns a cached copy when present, otherwise loads and caches the item.
func (s *CachedItemStore) GetByID(ctx context.Context, id string) (*model.Item, error) {
	if item := s.lookup(ctx, id); item != nil {
		return item, nil
	}
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.store(ctx, item)
	return item, nil
}

// Save persists the item and refreshes its cache entry.
func (s *CachedItemStore) Save(ctx context.Context, item *model.Item) (*model.Item, error) {
	saved, err := s.repo.Save(ctx, item)
	if err != nil {
		if item != nil {
			s.invalidate(ctx, item.ID)
		}
		return nil, err
	}
	s.store(ctx, saved)
	return saved, nil
}

func (s *CachedItemStore) Create(ctx context.Context, req *model.CreateItemRequest) (*model.Item, error) {
	item, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.store(ctx, item)
	return item, nil
}

func (s *CachedItemStore) List(ctx context.Context, opts model.ItemsListOptions) ([]*model.Item, error) {
	return s.repo.List(ctx, opts)
}

func (s *CachedItemStore) Update(
	ctx context.Context,
	id string,
	req model.UpdateItemRequest,
) (*model.Item, error) {
	item, err := s.repo.Update(ctx, id, req)
	if err != nil {
		s.invalidate(ctx, id)
		return nil, err
	}
	s.store(ctx, item)
	return item, nil
}

// Delete removes the item and its cache entry.
func (s *CachedItemStore) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	s.invalidate(ctx, id)
	return deleted, err
}

func (s *CachedItemStore) lookup(ctx context.Context, id string) *model.Item {
	if s.cache == nil || id == "" {
		return nil
	}
	raw, err := s.cache.Get(ctx, itemCacheKey(id))
	if err != nil {
		s.logger.WarnContext(ctx, "item cache get failed", "item_id", id, "error", err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	var item model.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		s.logger.WarnContext(ctx, "discarding undecodable cached item", "item_id", id, "error", err)
		s.invalidate(ctx, id)
		return nil
	}
	return &item
}

func (s *CachedItemStore) store(ctx context.Context, item *model.Item) {
	if s.cache == nil || item == nil || item.ID == "" {
		return
	}
	raw, err := json.Marshal(item)
	if err != nil {
		s.logger.WarnContext(ctx, "item cache encode failed", "item_id", item.ID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, itemCacheKey(item.ID), raw, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "item cache set failed", "item_id", item.ID, "error", err)
	}
}

func (s *CachedItemStore) invalidate(ctx context.Context, id string) {
	if s.cache == nil || id == "" {
		return
	}
	if _, err := s.cache.Delete(ctx, itemCacheKey(id)); err != nil {
		s.logger.WarnContext(ctx, "item cache delete failed", "item_id", id, "error", err)
	}
}

func itemCacheKey(id string) string {
	return ItemCacheKeyPrefix + id
}
