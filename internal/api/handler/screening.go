// Package handler implements the results service HTTP handlers.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/minleaf/sieve/internal/api/response"
	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/metrics"
	"github.com/minleaf/sieve/internal/storage/report"
)

// ScreeningHandler serves report ingest and read endpoints.
type ScreeningHandler struct {
	store   report.Store
	metrics *metrics.Registry
}

// NewScreeningHandler creates a new screening handler.
func NewScreeningHandler(store report.Store, reg *metrics.Registry) *ScreeningHandler {
	return &ScreeningHandler{store: store, metrics: reg}
}

// Ingest accepts a screening report payload and stores it under its
// run date. The acknowledgement is flat, matching what the sync
// client decodes.
func (h *ScreeningHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.metrics.RecordIngest("invalid")
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidPayload, err))
		return
	}

	runDate, _ := doc["run_date"].(string)
	if runDate == "" {
		h.metrics.RecordIngest("invalid")
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidPayload, fmt.Errorf("run_date is required")))
		return
	}

	rec, err := h.store.Save(r.Context(), runDate, doc)
	if err != nil {
		h.metrics.RecordIngest("failed")
		response.Error(w, http.StatusInternalServerError, err)
		return
	}

	h.metrics.RecordIngest("accepted")
	h.metrics.SetReportsStored(h.store.Count(r.Context()))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"message":  "OK",
		"inserted": rec.Inserted,
	})
}

// Latest returns the report with the most recent run date.
func (h *ScreeningHandler) Latest(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Latest(r.Context())
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}
	response.JSON(w, http.StatusOK, recordDoc(rec))
}

// ByDate returns the report for the run date in the path.
func (h *ScreeningHandler) ByDate(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.ByDate(r.Context(), r.PathValue("date"))
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}
	response.JSON(w, http.StatusOK, recordDoc(rec))
}

// Dates returns the held run dates, newest first.
func (h *ScreeningHandler) Dates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.store.Dates(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"dates": dates,
		"count": len(dates),
	})
}

func recordDoc(rec *report.Record) map[string]any {
	return map[string]any{
		"id":          rec.ID,
		"run_date":    rec.RunDate,
		"received_at": rec.ReceivedAt.UTC().Format(time.RFC3339),
		"inserted":    rec.Inserted,
		"report":      rec.Document,
	}
}
