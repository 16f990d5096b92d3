// Package httpx provides the JSON API for items and batch runs.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/mmk-items-api/internal/domain/model"
	"github.com/target/mmk-items-api/internal/service"
)

const (
	defaultItemsLimit = 50
	maxItemsLimit     = 1000

	// DefaultProcessTimeout bounds how long a synchronous process request waits.
	DefaultProcessTimeout = 5 * time.Minute
)

// BatchProcessor starts batch runs. *service.ItemProcessingService implements it.
type BatchProcessor interface {
	ProcessAll(ctx context.Context) *service.BatchHandle
}

// ItemHandlers provides HTTP handlers for item CRUD and batch processing.
type ItemHandlers struct {
	Svc            *service.ItemService
	Engine         BatchProcessor
	Filter         *service.ItemFilterService
	ProcessTimeout time.Duration
	Logger         *slog.Logger
}

// List handles GET /api/items. A filter query param is evaluated as JMESPath
// over the page and its result returned instead of the items.
func (h *ItemHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultItemsLimit, maxItemsLimit)
	items, err := h.Svc.List(r.Context(), model.ItemsListOptions{Limit: limit, Offset: offset})
	if err != nil {
		writeServiceError(w, err, "list_failed")
		return
	}
	if items == nil {
		items = []*model.Item{}
	}

	expr := r.URL.Query().Get("filter")
	if expr == "" || h.Filter == nil {
		WriteJSON(w, http.StatusOK, items)
		return
	}
	out, err := h.Filter.Apply(expr, items)
	if err != nil {
		writeServiceError(w, err, "filter_failed")
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

// Create handles POST /api/items.
func (h *ItemHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateItemRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	item, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "create_failed")
		return
	}
	WriteJSON(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemHandlers) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Svc.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "get_failed")
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateItemRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	item, err := h.Svc.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err, "update_failed")
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Svc.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "delete_failed")
		return
	}
	if !deleted {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type processAccepted struct {
	RunID string `json:"run_id"`
}

// Process handles GET /api/items/process. By default it waits for the run and
// returns the processed items. With async=true it answers 202 with the run ID.
// Either way the run is detached from the request and keeps going after the
// response, a timeout or a client disconnect.
func (h *ItemHandlers) Process(w http.ResponseWriter, r *http.Request) {
	handle := h.Engine.ProcessAll(context.WithoutCancel(r.Context()))
	if parseBoolQuery(r, "async") {
		WriteJSON(w, http.StatusAccepted, processAccepted{RunID: handle.RunID()})
		return
	}

	timeout := h.ProcessTimeout
	if timeout <= 0 {
		timeout = DefaultProcessTimeout
	}
	waitCtx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	items, err := handle.Wait(waitCtx)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, items)
	case waitCtx.Err() != nil && errors.Is(err, waitCtx.Err()):
		h.logger().WarnContext(r.Context(), "process request gave up waiting",
			"run_id", handle.RunID(), "error", err)
		WriteJSON(w, http.StatusGatewayTimeout, map[string]string{
			"error":  "processing_timeout",
			"run_id": handle.RunID(),
		})
	default:
		h.logger().ErrorContext(r.Context(), "batch run failed",
			"run_id", handle.RunID(), "error", err)
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "processing_unavailable"})
	}
}

func (h *ItemHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
