package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arbmon/internal/domain"
)

// ReportEngine is the slice of the analytics engine the handler needs.
type ReportEngine interface {
	Analyze(ctx context.Context, fiat string, since time.Time) (domain.Report, error)
}

// ReportHandler serves temporal analysis reports.
type ReportHandler struct {
	engine ReportEngine
	logger *slog.Logger
}

// NewReportHandler creates a ReportHandler over the given engine.
func NewReportHandler(engine ReportEngine, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{engine: engine, logger: logger}
}

// GetReport builds the report for a fiat over a trailing window.
// GET /api/report?fiat=ARS&days=7
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}

	fiat := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("fiat")))
	if fiat == "" {
		writeError(w, http.StatusBadRequest, "fiat query parameter is required")
		return
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	report, err := h.engine.Analyze(r.Context(), fiat, since)
	if err != nil {
		h.logger.Error("report generation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
