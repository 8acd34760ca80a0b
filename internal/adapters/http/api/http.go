// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	service "github.com/okian/scorestat/internal/app"
	"github.com/okian/scorestat/internal/domain/aggregate"
	"github.com/okian/scorestat/internal/domain/ranking"
	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Report(ctx context.Context) (aggregate.Report, error)
	SubjectDetail(ctx context.Context, subject string) (aggregate.SubjectDetail, error)
	ChartData(ctx context.Context) (aggregate.Chart, error)
	Dashboard(ctx context.Context) (aggregate.Dashboard, error)
	TopStudents(ctx context.Context, limit, minSubjects int) (ranking.Result, error)

	GetScore(ctx context.Context, id string) (score.Record, error)
	ListScores(ctx context.Context, offset, limit int) (service.Page, error)
	CreateScore(ctx context.Context, rec score.Record) error
	UpdateScore(ctx context.Context, rec score.Record) error
	DeleteScore(ctx context.Context, id string) error

	Stats(ctx context.Context) (service.Stats, error)
}

// envelope is the body shape of every /api response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	reportHandler      *ReportHandler
	leaderboardHandler *LeaderboardHandler
	dashboardHandler   *DashboardHandler
	scoresHandler      *ScoresHandler

	origins []string
	log     logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS allow list. Defaults to "*".
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{origins: []string{"*"}}
	if logger.Initialized() {
		s.log = logger.Named("api")
	} else {
		s.log = logger.Discard()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps, s.log)
	s.reportHandler = NewReportHandler(deps, s.log)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.log)
	s.dashboardHandler = NewDashboardHandler(deps, s.log)
	s.scoresHandler = NewScoresHandler(deps, s.log)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Length", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.StripSlashes)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.NotFound(s.handleUnknownRoute)
		r.Get("/stats", s.statsHandler.HandleStats)

		r.Route("/score-report", func(r chi.Router) {
			r.Get("/", s.reportHandler.HandleReport)
			r.Get("/subject/{subject}", s.reportHandler.HandleSubject)
			r.Get("/chart-data", s.reportHandler.HandleChart)
		})
		r.Get("/top-students/group-a", s.leaderboardHandler.HandleGroupA)
		r.Get("/dashboard/summary", s.dashboardHandler.HandleSummary)

		r.Route("/scores", func(r chi.Router) {
			r.Get("/", s.scoresHandler.HandleList)
			r.Post("/", s.scoresHandler.HandleCreate)
			r.Get("/{sbd}", s.scoresHandler.HandleGet)
			r.Put("/{sbd}", s.scoresHandler.HandleUpdate)
			r.Delete("/{sbd}", s.scoresHandler.HandleDelete)
		})
	})
}

// handleUnknownRoute answers unmatched /api paths with the failure envelope.
func (s *Server) handleUnknownRoute(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, s.log, NewKind(r.URL.Path, ErrNotFound))
}

// Handler returns a new router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError maps err to a status and writes the failure envelope. Server
// side failures are logged.
func writeError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err))
	}
	writeJSON(w, status, envelope{Success: false, Error: clientMessage(err)})
}
