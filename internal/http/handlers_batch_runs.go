package httpx

import (
	"net/http"

	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/service"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// BatchRunHandlers serves batch run history.
type BatchRunHandlers struct {
	Svc *service.BatchRunService
}

// List handles GET /api/batch-runs, optionally filtered by ?status=.
func (h *BatchRunHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultRunsLimit, maxRunsLimit)
	opts := model.BatchRunListOptions{Limit: limit, Offset: offset}
	if s := r.URL.Query().Get("status"); s != "" {
		status := model.BatchRunStatus(s)
		if !status.Valid() {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_status"})
			return
		}
		opts.Status = &status
	}

	runs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err, "list_failed")
		return
	}
	if runs == nil {
		runs = []*model.BatchRunSummary{}
	}
	WriteJSON(w, http.StatusOK, runs)
}

// Get handles GET /api/batch-runs/{id}.
func (h *BatchRunHandlers) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.Svc.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "get_failed")
		return
	}
	WriteJSON(w, http.StatusOK, run)
}
