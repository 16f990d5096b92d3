package service

import (
	"context"
	"errors"

	"github.com/target/mmk-items-api/internal/core"
	"github.com/target/mmk-items-api/internal/domain/model"
)

// BatchRunServiceOptions groups dependencies for BatchRunService.
type BatchRunServiceOptions struct {
	Repo core.BatchRunRepository
}

// BatchRunService exposes batch run history.
type BatchRunService struct {
	runs core.BatchRunRepository
}

// NewBatchRunService constructs a new BatchRunService.
func NewBatchRunService(opts BatchRunServiceOptions) (*BatchRunService, error) {
	if opts.Repo == nil {
		return nil, errors.New("batch run repository is required")
	}
	return &BatchRunService{runs: opts.Repo}, nil
}

// GetByID returns one run summary.
func (s *BatchRunService) GetByID(ctx context.Context, id string) (*model.BatchRunSummary, error) {
	return s.runs.GetByID(ctx, id)
}

// List returns recent run summaries, newest first.
func (s *BatchRunService) List(ctx context.Context, opts model.BatchRunListOptions) ([]*model.BatchRunSummary, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	opts.Limit = min(opts.Limit, 200)
	opts.Offset = max(opts.Offset, 0)
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, errors.New("invalid batch run status filter")
	}
	return s.runs.List(ctx, opts)
}
