package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/mmk-items-api/internal/core"
	"github.com/target/mmk-items-api/internal/service"
	"github.com/target/mmk-items-api/internal/testutil/itemstore"
	"github.com/target/mmk-items-api/internal/workerpool"
)

type testServer struct {
	store  *itemstore.Memory
	pool   *workerpool.Pool
	engine *service.ItemProcessingService
	router http.Handler
}

type serverOptions struct {
	runs    core.BatchRunRepository
	timeout time.Duration
	delay   time.Duration
	checks  []HealthCheck
}

func newTestServer(t *testing.T, store *itemstore.Memory, opts serverOptions) *testServer {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	pool := workerpool.New(workerpool.Options{Size: 2, Logger: logger})
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Close() })

	items, err := service.NewItemService(service.ItemServiceOptions{Repo: store})
	require.NoError(t, err)
	mutator, err := service.NewItemMutator(service.ItemMutatorOptions{Store: store, Delay: opts.delay, Logger: logger})
	require.NoError(t, err)
	engine, err := service.NewItemProcessingService(service.ItemProcessingServiceOptions{
		Store:     store,
		Processor: mutator,
		Pool:      pool,
		Runs:      opts.runs,
		Logger:    logger,
	})
	require.NoError(t, err)

	rs := RouterServices{
		Items:          items,
		Engine:         engine,
		HealthChecks:   opts.checks,
		ProcessTimeout: opts.timeout,
		Logger:         logger,
	}
	if opts.runs != nil {
		rs.BatchRuns, err = service.NewBatchRunService(service.BatchRunServiceOptions{Repo: opts.runs})
		require.NoError(t, err)
	}

	return &testServer{store: store, pool: pool, engine: engine, router: NewRouter(rs)}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
