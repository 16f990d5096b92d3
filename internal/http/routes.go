package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/mmk-items-api/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Items     *service.ItemService
	Engine    BatchProcessor
	BatchRuns *service.BatchRunService // Optional: history routes are skipped when nil
	// Optional: JMESPath filter service. If nil, a default will be created.
	Filter         *service.ItemFilterService
	HealthChecks   []HealthCheck
	ProcessTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter creates and configures the HTTP router wrapped in logging and
// panic recovery.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	filter := services.Filter
	if filter == nil {
		filter = service.NewItemFilterService(nil)
	}

	mux := http.NewServeMux()
	health := healthHandler(services.HealthChecks...)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	registerItemRoutes(mux, &ItemHandlers{
		Svc:            services.Items,
		Engine:         services.Engine,
		Filter:         filter,
		ProcessTimeout: services.ProcessTimeout,
		Logger:         logger.With("component", "http"),
	})
	if services.BatchRuns != nil {
		registerBatchRunRoutes(mux, &BatchRunHandlers{Svc: services.BatchRuns})
	}

	return Recover(logger)(Logging(logger)(mux))
}

func registerItemRoutes(mux *http.ServeMux, h *ItemHandlers) {
	mux.HandleFunc("GET /api/items", h.List)
	mux.HandleFunc("POST /api/items", h.Create)
	// Literal segments win over wildcards, so this never reaches Get.
	mux.HandleFunc("GET /api/items/process", h.Process)
	mux.HandleFunc("GET /api/items/{id}", h.Get)
	mux.HandleFunc("PUT /api/items/{id}", h.Update)
	mux.HandleFunc("DELETE /api/items/{id}", h.Delete)
}

func registerBatchRunRoutes(mux *http.ServeMux, h *BatchRunHandlers) {
	mux.HandleFunc("GET /api/batch-runs", h.List)
	mux.HandleFunc("GET /api/batch-runs/{id}", h.Get)
}
