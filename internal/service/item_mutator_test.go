package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-items-api/internal/data"
	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/testutil/itemstore"
)

func newMutator(t *testing.T, store *itemstore.Memory, opts ItemMutatorOptions) *ItemMutator {
	t.Helper()
	opts.Store = store
	opts.RetryBackoff = max(opts.RetryBackoff, time.Millisecond)
	m, err := NewItemMutator(opts)
	require.NoError(t, err)
	return m
}

func TestNewItemMutator_RequiresStore(t *testing.T) {
	_, err := NewItemMutator(ItemMutatorOptions{})
	require.Error(t, err)
}

func TestItemMutator_ProcessOne_Success(t *testing.T) {
	store := itemstore.WithIDs("1")
	m := newMutator(t, store, ItemMutatorOptions{Delay: time.Millisecond})

	outcome := m.ProcessOne(context.Background(), "1")

	require.True(t, outcome.Succeeded())
	assert.Equal(t, "1", outcome.ItemID)
	assert.Equal(t, model.ItemStatusProcessed, outcome.Item.Status)
	assert.Equal(t, model.ItemStatusProcessed, store.Snapshot("1").Status)
	assert.Equal(t, "item 1", outcome.Item.Name, "only status changes")
}

func TestItemMutator_ProcessOne_KeepsConcurrentEdits(t *testing.T) {
	store := itemstore.WithIDs("1")
	store.OnSave(func(context.Context, *model.Item) error {
		edited := store.Snapshot("1")
		edited.Name = "renamed during delay"
		edited.Email = "new-owner@example.com"
		store.Put(edited)
		return nil
	})
	m := newMutator(t, store, ItemMutatorOptions{Delay: time.Millisecond})

	outcome := m.ProcessOne(context.Background(), "1")

	require.True(t, outcome.Succeeded())
	stored := store.Snapshot("1")
	assert.Equal(t, model.ItemStatusProcessed, stored.Status)
	assert.Equal(t, "renamed during delay", stored.Name)
	assert.Equal(t, "new-owner@example.com", stored.Email)
	assert.Equal(t, stored.Name, outcome.Item.Name)
}

func TestItemMutator_ProcessOne_NotFound(t *testing.T) {
	m := newMutator(t, itemstore.New(), ItemMutatorOptions{})

	outcome := m.ProcessOne(context.Background(), "missing")

	assert.False(t, outcome.Succeeded())
	assert.Equal(t, model.FailureNotFound, outcome.Reason)
	assert.ErrorIs(t, outcome.Err, data.ErrItemNotFound)
}

func TestItemMutator_ProcessOne_DeletedBeforeSave(t *testing.T) {
	store := itemstore.WithIDs("1")
	store.OnSave(func(context.Context, *model.Item) error {
		store.Remove("1")
		return nil
	})
	m := newMutator(t, store, ItemMutatorOptions{})

	outcome := m.ProcessOne(context.Background(), "1")
	assert.Equal(t, model.FailureNotFound, outcome.Reason)
}

func TestItemMutator_ProcessOne_InterruptedDuringDelay(t *testing.T) {
	store := itemstore.WithIDs("1")
	m := newMutator(t, store, ItemMutatorOptions{Delay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome := m.ProcessOne(ctx, "1")

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, model.FailureInterrupted, outcome.Reason)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Equal(t, int64(0), store.Saves())
	assert.Equal(t, model.ItemStatusPending, store.Snapshot("1").Status)
}

func TestItemMutator_ProcessOne_CancelledBeforeLoad(t *testing.T) {
	m := newMutator(t, itemstore.WithIDs("1"), ItemMutatorOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := m.ProcessOne(ctx, "1")
	assert.Equal(t, model.FailureInterrupted, outcome.Reason)
}

func TestItemMutator_ProcessOne_LoadError(t *testing.T) {
	store := itemstore.WithIDs("1")
	store.OnGet(func(context.Context, string) error { return errors.New("connection reset") })
	m := newMutator(t, store, ItemMutatorOptions{})

	outcome := m.ProcessOne(context.Background(), "1")
	assert.Equal(t, model.FailurePersistence, outcome.Reason)
	assert.ErrorContains(t, outcome.Err, "connection reset")
}

func TestItemMutator_ProcessOne_SaveErrorSingleAttempt(t *testing.T) {
	store := itemstore.WithIDs("1")
	boom := errors.New("disk full")
	store.OnSave(func(context.Context, *model.Item) error { return boom })
	m := newMutator(t, store, ItemMutatorOptions{})

	outcome := m.ProcessOne(context.Background(), "1")

	assert.Equal(t, model.FailurePersistence, outcome.Reason)
	assert.ErrorIs(t, outcome.Err, boom)
	assert.Equal(t, int64(1), store.Saves())
}

func TestItemMutator_ProcessOne_SaveRetriesThenSucceeds(t *testing.T) {
	store := itemstore.WithIDs("1")
	var calls atomic.Int32
	store.OnSave(func(context.Context, *model.Item) error {
		if calls.Add(1) < 3 {
			return errors.New("serialization failure")
		}
		return nil
	})
	m := newMutator(t, store, ItemMutatorOptions{SaveAttempts: 3})

	outcome := m.ProcessOne(context.Background(), "1")

	require.True(t, outcome.Succeeded())
	assert.Equal(t, int64(3), store.Saves())
}

func TestItemMutator_ProcessOne_RetryStopsOnNotFound(t *testing.T) {
	store := itemstore.WithIDs("1")
	store.OnSave(func(context.Context, *model.Item) error { return data.ErrItemNotFound })
	m := newMutator(t, store, ItemMutatorOptions{SaveAttempts: 5})

	outcome := m.ProcessOne(context.Background(), "1")

	assert.Equal(t, model.FailureNotFound, outcome.Reason)
	assert.Equal(t, int64(1), store.Saves())
}

func TestItemMutator_ProcessOne_CancelledDuringBackoff(t *testing.T) {
	store := itemstore.WithIDs("1")
	ctx, cancel := context.WithCancel(context.Background())
	store.OnSave(func(context.Context, *model.Item) error {
		cancel()
		return errors.New("timeout talking to primary")
	})
	m := newMutator(t, store, ItemMutatorOptions{SaveAttempts: 3, RetryBackoff: time.Hour})

	outcome := m.ProcessOne(ctx, "1")

	assert.Equal(t, model.FailureInterrupted, outcome.Reason)
	assert.Equal(t, int64(1), store.Saves())
}
