package api

import (
	"net/http"

	"github.com/okian/scorestat/pkg/logger"
)

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
	log           logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider, log logger.Logger) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, log: log}
}

// HandleStats handles GET /api/stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stats"
	stats, err := h.statsProvider.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeData(w, http.StatusOK, stats)
}
