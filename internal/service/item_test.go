package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-items-api/internal/data"
	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/mocks"
	"github.com/target/mmk-items-api/internal/testutil"
)

func newItemService(t *testing.T) (*ItemService, *mocks.MockItemRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockItemRepository(ctrl)
	svc, err := NewItemService(ItemServiceOptions{Repo: repo})
	require.NoError(t, err)
	return svc, repo
}

func TestNewItemService_RequiresRepo(t *testing.T) {
	_, err := NewItemService(ItemServiceOptions{})
	require.Error(t, err)
}

func TestItemService_Create(t *testing.T) {
	svc, repo := newItemService(t)
	ctx := context.Background()

	t.Run("valid request is normalized and stored", func(t *testing.T) {
		req := testutil.NewItemRequest().WithEmail("  owner@example.com ").Build()
		repo.EXPECT().Create(ctx, req).DoAndReturn(
			func(_ context.Context, r *model.CreateItemRequest) (*model.Item, error) {
				assert.Equal(t, "owner@example.com", r.Email)
				return &model.Item{ID: "1", Name: r.Name, Email: r.Email, Status: r.Status}, nil
			})

		item, err := svc.Create(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "1", item.ID)
	})

	t.Run("invalid request never reaches the store", func(t *testing.T) {
		_, err := svc.Create(ctx, &model.CreateItemRequest{Name: "x", Status: "NEW", Email: "not-an-email"})
		var verrs model.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		require.Len(t, verrs, 1)
		assert.Equal(t, "email", verrs[0].Field)
	})

	t.Run("nil request", func(t *testing.T) {
		_, err := svc.Create(ctx, nil)
		require.Error(t, err)
	})
}

func TestItemService_GetByID_PropagatesNotFound(t *testing.T) {
	svc, repo := newItemService(t)
	repo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrItemNotFound)

	_, err := svc.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, data.ErrItemNotFound)
}

func TestItemService_List_NormalizesPaging(t *testing.T) {
	tests := []struct {
		name string
		in   model.ItemsListOptions
		want model.ItemsListOptions
	}{
		{"defaults", model.ItemsListOptions{}, model.ItemsListOptions{Limit: 50}},
		{"caps limit", model.ItemsListOptions{Limit: 5000, Offset: 10}, model.ItemsListOptions{Limit: 1000, Offset: 10}},
		{"negative offset", model.ItemsListOptions{Limit: 5, Offset: -3}, model.ItemsListOptions{Limit: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newItemService(t)
			repo.EXPECT().List(gomock.Any(), tt.want).Return([]*model.Item{}, nil)

			_, err := svc.List(context.Background(), tt.in)
			require.NoError(t, err)
		})
	}
}

func TestItemService_Update(t *testing.T) {
	svc, repo := newItemService(t)
	ctx := context.Background()

	req := model.UpdateItemRequest{Name: "Widget", Status: " ACTIVE ", Email: "a@example.com"}
	repo.EXPECT().Update(ctx, "7", model.UpdateItemRequest{Name: "Widget", Status: "ACTIVE", Email: "a@example.com"}).
		Return(&model.Item{ID: "7", Status: "ACTIVE"}, nil)

	item, err := svc.Update(ctx, "7", req)
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", item.Status)

	_, err = svc.Update(ctx, "7", model.UpdateItemRequest{Email: "a@example.com"})
	require.Error(t, err)
}

func TestItemService_Delete(t *testing.T) {
	svc, repo := newItemService(t)
	repo.EXPECT().Delete(gomock.Any(), "7").Return(true, nil)
	repo.EXPECT().Delete(gomock.Any(), "8").Return(false, errors.New("boom"))

	ok, err := svc.Delete(context.Background(), "7")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Delete(context.Background(), "8")
	require.Error(t, err)
}
