// Package itemstore provides an in-memory core.ItemRepository for tests
// that exercise the batch engine without Postgres.
package itemstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/target/mmk-items-api/internal/core"
	"github.com/target/mmk-items-api/internal/data"
	"github.com/target/mmk-items-api/internal/domain/model"
)

// GetHook runs before a GetByID lookup. A non-nil error is returned to the caller.
type GetHook func(ctx context.Context, id string) error

// SaveHook runs before a Save. A non-nil error is returned to the caller.
type SaveHook func(ctx context.Context, item *model.Item) error

// Memory is a concurrency-safe item store keyed by ID.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*model.Item
	order []string
	seq   int

	beforeGet  GetHook
	beforeSave SaveHook
	listErr    error

	gets  atomic.Int64
	saves atomic.Int64
}

var _ core.ItemRepository = (*Memory)(nil)

// New returns an empty store.
func New() *Memory {
	return &Memory{items: make(map[string]*model.Item)}
}

// WithIDs returns a store holding one PENDING item per ID, in order.
func WithIDs(ids ...string) *Memory {
	m := New()
	for _, id := range ids {
		m.Put(&model.Item{
			ID:     id,
			Name:   "item " + id,
			Status: model.ItemStatusPending,
			Email:  "owner-" + id + "@example.com",
		})
	}
	return m
}

// Numbered returns a store holding items "1".."n".
func Numbered(n int) *Memory {
	ids := make([]string, n)
	for i := range n {
		ids[i] = strconv.Itoa(i + 1)
	}
	return WithIDs(ids...)
}

// Put inserts or replaces an item with its own ID.
func (m *Memory) Put(item *model.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		m.order = append(m.order, item.ID)
	}
	m.items[item.ID] = item.Clone()
}

// Remove deletes an item directly, bypassing hooks.
func (m *Memory) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

// Snapshot returns a copy of the stored item, or nil.
func (m *Memory) Snapshot(id string) *model.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[id].Clone()
}

// OnGet installs a hook run before every GetByID.
func (m *Memory) OnGet(h GetHook) { m.mu.Lock(); m.beforeGet = h; m.mu.Unlock() }

// OnSave installs a hook run before every Save.
func (m *Memory) OnSave(h SaveHook) { m.mu.Lock(); m.beforeSave = h; m.mu.Unlock() }

// FailList makes ListAllIDs return err.
func (m *Memory) FailList(err error) { m.mu.Lock(); m.listErr = err; m.mu.Unlock() }

// Gets reports how many GetByID calls were made.
func (m *Memory) Gets() int64 { return m.gets.Load() }

// Saves reports how many Save calls were made.
func (m *Memory) Saves() int64 { return m.saves.Load() }

// ListAllIDs implements core.ItemStore.
func (m *Memory) ListAllIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append(make([]string, 0, len(m.order)), m.order...), nil
}

// GetByID implements core.ItemStore.
func (m *Memory) GetByID(ctx context.Context, id string) (*model.Item, error) {
	m.gets.Add(1)
	m.mu.RLock()
	hook := m.beforeGet
	m.mu.RUnlock()
	if hook != nil {
		if err := hook(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("get item %s: %w", id, data.ErrItemNotFound)
	}
	return item.Clone(), nil
}

// Save implements core.ItemStore. Like the SQL store it writes only the status,
// and saving an unknown ID fails.
func (m *Memory) Save(ctx context.Context, item *model.Item) (*model.Item, error) {
	m.saves.Add(1)
	if item == nil {
		return nil, errors.New("item is required")
	}
	m.mu.RLock()
	hook := m.beforeSave
	m.mu.RUnlock()
	if hook != nil {
		if err := hook(ctx, item); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[item.ID]
	if !ok {
		return nil, fmt.Errorf("save item %s: %w", item.ID, data.ErrItemNotFound)
	}
	stored := existing.Clone()
	stored.Status = item.Status
	stored.UpdatedAt = time.Now()
	m.items[item.ID] = stored
	return stored.Clone(), nil
}

// Create implements core.ItemRepository with sequential numeric IDs.
func (m *Memory) Create(_ context.Context, req *model.CreateItemRequest) (*model.Item, error) {
	if req == nil {
		return nil, errors.New("create request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var id string
	for {
		m.seq++
		id = strconv.Itoa(m.seq)
		if _, taken := m.items[id]; !taken {
			break
		}
	}
	now := time.Now()
	item := &model.Item{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Email:       req.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.items[id] = item
	m.order = append(m.order, id)
	return item.Clone(), nil
}

// List implements core.ItemRepository.
func (m *Memory) List(_ context.Context, opts model.ItemsListOptions) ([]*model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := min(max(opts.Offset, 0), len(m.order))
	end := len(m.order)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, end)
	}
	out := make([]*model.Item, 0, end-start)
	for _, id := range m.order[start:end] {
		out = append(out, m.items[id].Clone())
	}
	return out, nil
}

// Update implements core.ItemRepository.
func (m *Memory) Update(_ context.Context, id string, req model.UpdateItemRequest) (*model.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("update item %s: %w", id, data.ErrItemNotFound)
	}
	updated := existing.Clone()
	updated.Name = req.Name
	updated.Description = req.Description
	updated.Status = req.Status
	updated.Email = req.Email
	updated.UpdatedAt = time.Now()
	m.items[id] = updated
	return updated.Clone(), nil
}

// Delete implements core.ItemRepository.
func (m *Memory) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(id), nil
}

func (m *Memory) removeLocked(id string) bool {
	if _, ok := m.items[id]; !ok {
		return false
	}
	delete(m.items, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	return true
}
