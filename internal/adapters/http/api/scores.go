package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/scorestat/internal/app"
	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/pkg/logger"
)

const maxBodyBytes = 1 << 20

// ScoresDependencies defines single record access.
type ScoresDependencies interface {
	GetScore(ctx context.Context, id string) (score.Record, error)
	ListScores(ctx context.Context, offset, limit int) (service.Page, error)
	CreateScore(ctx context.Context, rec score.Record) error
	UpdateScore(ctx context.Context, rec score.Record) error
	DeleteScore(ctx context.Context, id string) error
}

// ScoresHandler serves /api/scores.
type ScoresHandler struct {
	deps ScoresDependencies
	log  logger.Logger
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoresDependencies, log logger.Logger) *ScoresHandler {
	return &ScoresHandler{deps: deps, log: log}
}

// HandleList handles GET /api/scores/?offset=&limit=.
func (h *ScoresHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_scores"
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		writeError(w, r, h.log, badRequest(op, "offset must be an integer"))
		return
	}
	limit, err := intParam(q.Get("limit"), service.MaxPageSize)
	if err != nil {
		writeError(w, r, h.log, badRequest(op, "limit must be an integer"))
		return
	}
	page, err := h.deps.ListScores(r.Context(), offset, limit)
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeData(w, http.StatusOK, page)
}

// HandleGet handles GET /api/scores/{sbd}/.
func (h *ScoresHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
	rec, err := h.deps.GetScore(r.Context(), chi.URLParam(r, "sbd"))
	if err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeData(w, http.StatusOK, rec)
}

// HandleCreate handles POST /api/scores/.
func (h *ScoresHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_score"
	rec, err := decodeRecord(w, r)
	if err != nil {
		writeError(w, r, h.log, badRequest(op, err.Error()))
		return
	}
	if err := h.deps.CreateScore(r.Context(), rec); err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeData(w, http.StatusCreated, rec)
}

// HandleUpdate handles PUT /api/scores/{sbd}/. The path identity wins over
// any registration number in the body.
func (h *ScoresHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_score"
	rec, err := decodeRecord(w, r)
	if err != nil {
		writeError(w, r, h.log, badRequest(op, err.Error()))
		return
	}
	rec.RegistrationNumber = chi.URLParam(r, "sbd")
	if err := h.deps.UpdateScore(r.Context(), rec); err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	writeData(w, http.StatusOK, rec)
}

// HandleDelete handles DELETE /api/scores/{sbd}/.
func (h *ScoresHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_score"
	if err := h.deps.DeleteScore(r.Context(), chi.URLParam(r, "sbd")); err != nil {
		writeError(w, r, h.log, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (score.Record, error) {
	var rec score.Record
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&rec); err != nil {
		return score.Record{}, err
	}
	rec.RegistrationNumber = strings.TrimSpace(rec.RegistrationNumber)
	rec.ForeignLanguageCode = strings.TrimSpace(rec.ForeignLanguageCode)
	return rec, nil
}
