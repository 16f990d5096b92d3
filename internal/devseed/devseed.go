// Package devseed loads a predictable set of items for local development.
package devseed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/mmk-items-api/internal/domain/model"
)

// DefaultCount is the number of items seeded when no count is given.
const DefaultCount = 25

const listPageSize = 200

// ItemWriter is the subset of the item service seeding needs.
type ItemWriter interface {
	List(ctx context.Context, opts model.ItemsListOptions) ([]*model.Item, error)
	Create(ctx context.Context, req *model.CreateItemRequest) (*model.Item, error)
}

// Run creates dev-item-001 through dev-item-<count>. Items whose name
// already exists are left untouched, so repeated runs are safe.
func Run(ctx context.Context, svc ItemWriter, count int, logger *slog.Logger) error {
	if svc == nil {
		return errors.New("item service is required")
	}
	if count <= 0 {
		count = DefaultCount
	}
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := existingNames(ctx, svc)
	if err != nil {
		return err
	}

	created, failures := 0, 0
	for _, req := range Items(count) {
		if existing[req.Name] {
			continue
		}
		if _, err := svc.Create(ctx, req); err != nil {
			logger.ErrorContext(ctx, "failed to create item", "name", req.Name, "error", err)
			failures++
			continue
		}
		created++
	}

	logger.InfoContext(ctx, "seeded items", "created", created, "skipped", count-created-failures)
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

// Items returns the deterministic seed requests.
func Items(count int) []*model.CreateItemRequest {
	reqs := make([]*model.CreateItemRequest, 0, count)
	for i := 1; i <= count; i++ {
		reqs = append(reqs, &model.CreateItemRequest{
			Name:        fmt.Sprintf("dev-item-%03d", i),
			Description: fmt.Sprintf("Development item %d", i),
			Status:      model.ItemStatusPending,
			Email:       fmt.Sprintf("owner-%d@example.com", i),
		})
	}
	return reqs
}

func existingNames(ctx context.Context, svc ItemWriter) (map[string]bool, error) {
	names := make(map[string]bool)
	for offset := 0; ; offset += listPageSize {
		page, err := svc.List(ctx, model.ItemsListOptions{Limit: listPageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("list existing items: %w", err)
		}
		for _, it := range page {
			names[it.Name] = true
		}
		if len(page) < listPageSize {
			return names, nil
		}
	}
}
