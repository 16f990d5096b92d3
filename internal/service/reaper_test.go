package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-items-api/config"
	"github.com/target/mmk-items-api/internal/mocks"
	"github.com/target/mmk-items-api/internal/observability/statsd"
)

func reaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:        time.Minute,
		BatchRunsMaxAge: 24 * time.Hour,
		BatchSize:       100,
	}
}

func TestNewReaperService_Validation(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{Config: reaperConfig()})
	require.Error(t, err)

	ctrl := gomock.NewController(t)
	cfg := reaperConfig()
	cfg.BatchSize = 0
	_, err = NewReaperService(ReaperServiceOptions{Repo: mocks.NewMockReaperRepository(ctrl), Config: cfg})
	require.Error(t, err)
}

func TestReaperService_RunOnce_DeletesUntilEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)
	rec := &statsd.Recorder{}

	gomock.InOrder(
		repo.EXPECT().DeleteOlderThan(gomock.Any(), 24*time.Hour, 100).Return(int64(100), nil),
		repo.EXPECT().DeleteOlderThan(gomock.Any(), 24*time.Hour, 100).Return(int64(42), nil),
		repo.EXPECT().DeleteOlderThan(gomock.Any(), 24*time.Hour, 100).Return(int64(0), nil),
	)

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:    repo,
		Config:  reaperConfig(),
		Logger:  slog.New(slog.DiscardHandler),
		Metrics: rec,
	})
	require.NoError(t, err)

	n, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(142), n)

	cleanup := rec.Named("reaper.cleanup")
	require.Len(t, cleanup, 1)
	assert.Equal(t, "success", cleanup[0].Tags["result"])
	deleted := rec.Named("reaper.batch_runs_deleted")
	require.Len(t, deleted, 1)
	assert.InDelta(t, 142, deleted[0].Value, 0)
	assert.Len(t, rec.Named("reaper.last_success_epoch"), 1)
}

func TestReaperService_RunOnce_Noop(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)
	rec := &statsd.Recorder{}
	repo.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), nil)

	svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: reaperConfig(), Metrics: rec})
	require.NoError(t, err)

	n, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "noop", rec.Named("reaper.cleanup")[0].Tags["result"])
	assert.Empty(t, rec.Named("reaper.batch_runs_deleted"))
}

func TestReaperService_RunOnce_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)
	rec := &statsd.Recorder{}
	dbErr := errors.New("connection reset")

	gomock.InOrder(
		repo.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(100), nil),
		repo.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), dbErr),
	)

	svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: reaperConfig(), Metrics: rec})
	require.NoError(t, err)

	n, err := svc.RunOnce(context.Background())
	require.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "delete old batch runs")
	assert.Equal(t, int64(100), n)

	cleanup := rec.Named("reaper.cleanup")
	require.Len(t, cleanup, 1)
	assert.Equal(t, "error", cleanup[0].Tags["result"])
	assert.NotEmpty(t, cleanup[0].Tags["error_class"])
	assert.Empty(t, rec.Named("reaper.last_success_epoch"))
}

func TestReaperService_Run_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)
	repo.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), nil).MinTimes(1)

	cfg := reaperConfig()
	cfg.Interval = 10 * time.Millisecond
	svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}

func TestReaperService_Run_DeadlineIsReturned(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)
	repo.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()

	cfg := reaperConfig()
	cfg.Interval = 5 * time.Millisecond
	svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, svc.Run(ctx), context.DeadlineExceeded)
}
