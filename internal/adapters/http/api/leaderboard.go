package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/scorestat/internal/domain/ranking"
	"github.com/okian/scorestat/pkg/logger"
)

// LeaderboardDependencies defines the interface for ranking reads.
type LeaderboardDependencies interface {
	TopStudents(ctx context.Context, limit, minSubjects int) (ranking.Result, error)
}

// LeaderboardHandler handles top student requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
	log  logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, log: log}
}

// HandleGroupA handles GET /api/top-students/group-a/?limit=&min_subjects=.
// The limit is clamped by the ranking engine; only non-integers are rejected.
func (h *LeaderboardHandler) HandleGroupA(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_top_students"
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), ranking.DefaultLimit)
	if err != nil {
		writeError(w, r, h.log, badRequest(op, "limit must be an integer"))
		return
	}
	minSubjects, err := intParam(q.Get("min_subjects"), ranking.DefaultMinSubjects)
	if err != nil {
		writeError(w, r, h.log, badRequest(op, "min_subjects must be an integer"))
		return
	}

	res, err := h.deps.TopStudents(r.Context(), limit, minSubjects)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeData(w, http.StatusOK, res)
}

// intParam parses an optional integer query value.
func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
