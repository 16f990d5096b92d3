package service

import (
	"context"
	"errors"
	"sync"

	"github.com/target/mmk-items-api/internal/domain/model"
)

// ErrBatchPending is returned by BatchHandle.Result before the run resolves.
var ErrBatchPending = errors.New("batch run still in progress")

// BatchHandle is the caller's view of an in-flight ProcessAll call.
// It resolves exactly once; Wait may be called any number of times.
type BatchHandle struct {
	runID string
	done  chan struct{}
	once  sync.Once

	result *model.BatchResult
	err    error
}

func newBatchHandle(runID string) *BatchHandle {
	return &BatchHandle{runID: runID, done: make(chan struct{})}
}

// RunID identifies the run in logs, metrics and batch run history.
func (h *BatchHandle) RunID() string { return h.runID }

// Done is closed once the run has resolved.
func (h *BatchHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run resolves or ctx ends. It returns the processed
// items in snapshot order, or the batch-level error.
func (h *BatchHandle) Wait(ctx context.Context) ([]*model.Item, error) {
	select {
	case <-h.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.result.Items, nil
}

// Result returns the full result once resolved. Per-item failures live in
// the result; the error is set only for batch-level failures.
func (h *BatchHandle) Result() (*model.BatchResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	default:
		return nil, ErrBatchPending
	}
}

func (h *BatchHandle) resolve(result *model.BatchResult, err error) {
	h.once.Do(func() {
		h.result = result
		h.err = err
		close(h.done)
	})
}
