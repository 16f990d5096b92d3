package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-items-api/internal/core"
	"github.com/target/mmk-items-api/internal/data"
	"github.com/target/mmk-items-api/internal/domain/model"
)

const defaultRetryBackoff = 200 * time.Millisecond

// ItemMutatorOptions groups dependencies for ItemMutator.
type ItemMutatorOptions struct {
	Store core.ItemStore // Required
	// Delay is the simulated work time between load and save. Zero disables it.
	Delay time.Duration
	// SaveAttempts bounds save tries; values below 1 mean a single attempt.
	SaveAttempts int
	// RetryBackoff is the first wait between save attempts and doubles after each.
	RetryBackoff time.Duration
	Logger       *slog.Logger
}

// ItemMutator transitions a single item to PROCESSED.
// It holds no per-batch state and is safe for concurrent use.
type ItemMutator struct {
	store        core.ItemStore
	delay        time.Duration
	saveAttempts int
	retryBackoff time.Duration
	logger       *slog.Logger
}

// NewItemMutator constructs an ItemMutator.
func NewItemMutator(opts ItemMutatorOptions) (*ItemMutator, error) {
	if opts.Store == nil {
		return nil, errors.New("item store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &ItemMutator{
		store:        opts.Store,
		delay:        max(opts.Delay, 0),
		saveAttempts: max(opts.SaveAttempts, 1),
		retryBackoff: backoff,
		logger:       logger.With("component", "item_mutator"),
	}, nil
}

// ProcessOne loads the item, waits the configured delay, marks it PROCESSED
// and saves it. It never returns an error; every failure is an outcome.
func (m *ItemMutator) ProcessOne(ctx context.Context, id string) model.ItemOutcome {
	item, err := m.store.GetByID(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, data.ErrItemNotFound):
		return model.Failure(id, model.FailureNotFound, err)
	case isContextCancellation(err):
		return model.Failure(id, model.FailureInterrupted, err)
	default:
		return model.Failure(id, model.FailurePersistence, fmt.Errorf("load item: %w", err))
	}
	if item == nil {
		return model.Failure(id, model.FailureNotFound, data.ErrItemNotFound)
	}

	if err := sleepCtx(ctx, m.delay); err != nil {
		return model.Failure(id, model.FailureInterrupted, err)
	}

	item.Status = model.ItemStatusProcessed
	saved, err := m.save(ctx, item)
	switch {
	case err == nil:
		return model.Success(saved)
	case errors.Is(err, data.ErrItemNotFound):
		// Deleted between load and save.
		return model.Failure(id, model.FailureNotFound, err)
	case isContextCancellation(err):
		return model.Failure(id, model.FailureInterrupted, err)
	default:
		return model.Failure(id, model.FailurePersistence, fmt.Errorf("save item: %w", err))
	}
}

// save retries transient failures with doubling backoff. Not-found and context
// errors are returned immediately.
func (m *ItemMutator) save(ctx context.Context, item *model.Item) (*model.Item, error) {
	backoff := m.retryBackoff
	var err error
	for attempt := 1; ; attempt++ {
		var saved *model.Item
		saved, err = m.store.Save(ctx, item)
		if err == nil {
			if saved == nil {
				saved = item
			}
			return saved, nil
		}
		if attempt >= m.saveAttempts || errors.Is(err, data.ErrItemNotFound) || isContextCancellation(err) {
			return nil, err
		}

		m.logger.DebugContext(ctx, "save failed, retrying",
			"item_id", item.ID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if waitErr := sleepCtx(ctx, backoff); waitErr != nil {
			return nil, waitErr
		}
		backoff *= 2
	}
}

// sleepCtx waits for d or until ctx ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
