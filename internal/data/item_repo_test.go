package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/testutil"
)

func TestItemRepo_Create_Get_List_Update_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedTimeProvider(testutil.TestTime())
		repo := NewItemRepoWithTimeProvider(db, clock)

		created, err := repo.Create(ctx, testutil.NewItemRequest().WithName("  Widget  ").Build())
		require.NoError(t, err)
		require.NoError(t, uuid.Validate(created.ID))
		assert.Equal(t, "Widget", created.Name)
		assert.Equal(t, model.ItemStatusPending, created.Status)
		assert.True(t, created.CreatedAt.Equal(testutil.TestTime()))

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Email, got.Email)

		clock.AddTime(time.Minute)
		second, err := repo.Create(ctx, testutil.NewItemRequest().WithName("Gadget").Build())
		require.NoError(t, err)

		lst, err := repo.List(ctx, model.ItemsListOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, lst, 2)
		assert.Equal(t, created.ID, lst[0].ID)
		assert.Equal(t, second.ID, lst[1].ID)

		ids, err := repo.ListAllIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{created.ID, second.ID}, ids)

		clock.AddTime(time.Minute)
		updated, err := repo.Update(ctx, created.ID, model.UpdateItemRequest{
			Name:   "Widget v2",
			Status: "ACTIVE",
			Email:  "new-owner@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "Widget v2", updated.Name)
		assert.Equal(t, "", updated.Description)
		assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

		deleted, err := repo.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = repo.GetByID(ctx, created.ID)
		require.ErrorIs(t, err, ErrItemNotFound)
	})
}

func TestItemRepo_SaveSetsStatus(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewItemRepo(db)

		item, err := repo.Create(ctx, testutil.NewItemRequest().Build())
		require.NoError(t, err)

		item.Status = model.ItemStatusProcessed
		saved, err := repo.Save(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, model.ItemStatusProcessed, saved.Status)

		// Edits made after the load are kept.
		stale := *item
		renamed, err := repo.Update(ctx, item.ID, model.UpdateItemRequest{
			Name:        "Renamed",
			Description: "edited while processing",
			Status:      "PENDING",
			Email:       "new-owner@example.com",
		})
		require.NoError(t, err)
		saved, err = repo.Save(ctx, &stale)
		require.NoError(t, err)
		assert.Equal(t, model.ItemStatusProcessed, saved.Status)
		assert.Equal(t, renamed.Name, saved.Name)
		assert.Equal(t, renamed.Description, saved.Description)
		assert.Equal(t, renamed.Email, saved.Email)

		// Saving an already processed item is a no-op transition.
		again, err := repo.Save(ctx, saved)
		require.NoError(t, err)
		assert.Equal(t, model.ItemStatusProcessed, again.Status)

		_, err = repo.Delete(ctx, item.ID)
		require.NoError(t, err)
		_, err = repo.Save(ctx, item)
		require.ErrorIs(t, err, ErrItemNotFound)
	})
}

func TestItemRepo_MalformedIDIsNotFound(t *testing.T) {
	repo := NewItemRepo(nil)

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = repo.Save(context.Background(), &model.Item{ID: "42"})
	require.ErrorIs(t, err, ErrItemNotFound)

	deleted, err := repo.Delete(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestItemRepo_CreateRejectsInvalidRequest(t *testing.T) {
	repo := NewItemRepo(nil)

	_, err := repo.Create(context.Background(), &model.CreateItemRequest{Name: "x"})
	var verrs model.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)

	_, err = repo.Create(context.Background(), nil)
	require.Error(t, err)
}

func TestItemRepo_ListAllIDsEmpty(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ids, err := NewItemRepo(db).ListAllIDs(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, ids)
		assert.Empty(t, ids)
	})
}
