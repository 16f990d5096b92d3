package devseed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-items-api/internal/domain/model"
)

type fakeItems struct {
	items   []*model.Item
	failOn  string
	listErr error
}

func (f *fakeItems) List(_ context.Context, opts model.ItemsListOptions) ([]*model.Item, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if opts.Offset >= len(f.items) {
		return nil, nil
	}
	end := min(opts.Offset+opts.Limit, len(f.items))
	return f.items[opts.Offset:end], nil
}

func (f *fakeItems) Create(_ context.Context, req *model.CreateItemRequest) (*model.Item, error) {
	if req.Name == f.failOn {
		return nil, errors.New("insert failed")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	it := &model.Item{Name: req.Name, Status: req.Status, Email: req.Email}
	f.items = append(f.items, it)
	return it, nil
}

func TestRun_CreatesAndIsIdempotent(t *testing.T) {
	svc := &fakeItems{}
	ctx := context.Background()

	require.NoError(t, Run(ctx, svc, 5, nil))
	require.Len(t, svc.items, 5)
	assert.Equal(t, "dev-item-001", svc.items[0].Name)
	assert.Equal(t, model.ItemStatusPending, svc.items[0].Status)

	require.NoError(t, Run(ctx, svc, 7, nil))
	assert.Len(t, svc.items, 7)
}

func TestRun_PagesThroughExistingItems(t *testing.T) {
	svc := &fakeItems{}
	for range listPageSize + 10 {
		svc.items = append(svc.items, &model.Item{Name: "other"})
	}
	svc.items = append(svc.items, &model.Item{Name: "dev-item-002"})

	require.NoError(t, Run(context.Background(), svc, 3, nil))
	assert.Len(t, svc.items, listPageSize+10+3)
}

func TestRun_DefaultCount(t *testing.T) {
	svc := &fakeItems{}
	require.NoError(t, Run(context.Background(), svc, 0, nil))
	assert.Len(t, svc.items, DefaultCount)
}

func TestRun_ReportsFailures(t *testing.T) {
	svc := &fakeItems{failOn: "dev-item-002"}
	err := Run(context.Background(), svc, 3, nil)
	require.ErrorContains(t, err, "1 seed errors")
	assert.Len(t, svc.items, 2)
}

func TestRun_ListError(t *testing.T) {
	err := Run(context.Background(), &fakeItems{listErr: errors.New("db down")}, 3, nil)
	require.ErrorContains(t, err, "list existing items")

	require.Error(t, Run(context.Background(), nil, 3, nil))
}

func TestItems_AreValid(t *testing.T) {
	for _, req := range Items(3) {
		require.NoError(t, req.Validate())
	}
}
