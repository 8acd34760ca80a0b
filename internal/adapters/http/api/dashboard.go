package api

import (
	"context"
	"net/http"

	"github.com/okian/scorestat/internal/domain/aggregate"
	"github.com/okian/scorestat/pkg/logger"
)

// DashboardDependencies defines the dashboard read.
type DashboardDependencies interface {
	Dashboard(ctx context.Context) (aggregate.Dashboard, error)
}

// DashboardHandler handles dashboard requests.
type DashboardHandler struct {
	deps DashboardDependencies
	log  logger.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps DashboardDependencies, log logger.Logger) *DashboardHandler {
	return &DashboardHandler{deps: deps, log: log}
}

// HandleSummary handles GET /api/dashboard/summary/.
func (h *DashboardHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_dashboard"
	d, err := h.deps.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeData(w, http.StatusOK, d)
}
