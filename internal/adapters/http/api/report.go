package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/scorestat/internal/domain/aggregate"
	"github.com/okian/scorestat/pkg/logger"
)

// ReportDependencies defines the aggregation reads.
type ReportDependencies interface {
	Report(ctx context.Context) (aggregate.Report, error)
	SubjectDetail(ctx context.Context, subject string) (aggregate.SubjectDetail, error)
	ChartData(ctx context.Context) (aggregate.Chart, error)
}

// chartResponse flattens the chart next to the success flag.
type chartResponse struct {
	Success bool `json:"success"`
	aggregate.Chart
}

// ReportHandler serves the score-level report endpoints.
type ReportHandler struct {
	deps ReportDependencies
	log  logger.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps ReportDependencies, log logger.Logger) *ReportHandler {
	return &ReportHandler{deps: deps, log: log}
}

// HandleReport handles GET /api/score-report/.
func (h *ReportHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_report"
	rep, err := h.deps.Report(r.Context())
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeData(w, http.StatusOK, rep)
}

// HandleSubject handles GET /api/score-report/subject/{subject}/.
func (h *ReportHandler) HandleSubject(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_subject"
	d, err := h.deps.SubjectDetail(r.Context(), chi.URLParam(r, "subject"))
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeData(w, http.StatusOK, d)
}

// HandleChart handles GET /api/score-report/chart-data/.
func (h *ReportHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_chart"
	ch, err := h.deps.ChartData(r.Context())
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, chartResponse{Success: true, Chart: ch})
}
