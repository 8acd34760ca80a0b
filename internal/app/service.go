// Package service wires the score store, the import pipeline and the
// aggregation and ranking engines behind the operations the HTTP API and the
// CLI need.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scorestat/internal/adapters/cache"
	"github.com/okian/scorestat/internal/adapters/repository"
	"github.com/okian/scorestat/internal/domain/aggregate"
	"github.com/okian/scorestat/internal/domain/ranking"
	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/internal/ingest"
	"github.com/okian/scorestat/pkg/logger"
	"github.com/okian/scorestat/pkg/metrics"
)

// MaxPageSize bounds ListScores.
const MaxPageSize = 500

// ErrNotStarted is returned by every operation before Start.
var ErrNotStarted = errors.New("service not started")

// Page is one slice of the record list.
type Page struct {
	Items  []score.Record `json:"items"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}

// Stats describe the running service.
type Stats struct {
	Started             bool   `json:"started"`
	Records             int    `json:"records"`
	AggregationStrategy string `json:"aggregation_strategy"`
	RankingStrategy     string `json:"ranking_strategy"`
	CacheTTLSeconds     int    `json:"cache_ttl_seconds"`
}

// Service implements the API and CLI dependencies.
type Service struct {
	mu sync.RWMutex

	// Core components
	repo      repository.Repository
	cache     cache.Cache
	aggregate *aggregate.Engine
	ranker    *ranking.Cached
	pipeline  *ingest.Pipeline

	// Configuration
	cacheTTL            time.Duration
	aggregationStrategy string
	rankingStrategy     string
	progress            func(ingest.Progress)

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRepository sets the score store. The service owns it and closes it on Stop.
func WithRepository(r repository.Repository) Option {
	return func(s *Service) {
		if r != nil {
			s.repo = r
		}
	}
}

// WithCache sets the ranking cache backend.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithCacheTTL sets the lifetime of cached rankings.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithAggregationStrategy selects the bucket counting backend by name.
func WithAggregationStrategy(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.aggregationStrategy = name
		}
	}
}

// WithRankingStrategy selects the ranking strategy by name.
func WithRankingStrategy(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.rankingStrategy = name
		}
	}
}

// WithImportProgress registers a callback for import progress.
func WithImportProgress(fn func(ingest.Progress)) Option {
	return func(s *Service) { s.progress = fn }
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cacheTTL:            ranking.DefaultCacheTTL,
		aggregationStrategy: aggregate.StrategySetBased,
		rankingStrategy:     ranking.StrategyRowWise,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the engines. Without WithRepository an in-memory store is
// used; without WithCache an in-memory cache is used.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		if logger.Initialized() {
			s.logger = logger.Named("service")
		} else {
			s.logger = logger.Discard()
		}
	}

	switch s.aggregationStrategy {
	case aggregate.StrategyRowWise, aggregate.StrategySetBased:
	default:
		return &score.ValidationError{Field: "aggregation_strategy", Value: s.aggregationStrategy, Reason: "unknown strategy"}
	}
	if s.repo == nil {
		s.repo = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}

	strategy, err := ranking.NewStrategy(s.rankingStrategy, s.repo)
	if err != nil {
		return err
	}

	s.aggregate = aggregate.NewEngine(s.repo, aggregate.WithStrategy(s.aggregationStrategy))
	s.ranker = ranking.NewCached(
		ranking.NewEngine(strategy, ranking.WithLogger(s.logger.Named("ranking"))),
		s.cache,
		ranking.WithTTL(s.cacheTTL),
		ranking.WithCacheLogger(s.logger.Named("cache")),
	)

	pipelineOpts := []ingest.Option{
		ingest.WithLogger(s.logger.Named("ingest")),
		ingest.WithAfterImport(func(ctx context.Context, _ ingest.Result) { s.ranker.InvalidateCache(ctx) }),
	}
	if s.progress != nil {
		pipelineOpts = append(pipelineOpts, ingest.WithProgress(s.progress))
	}
	s.pipeline = ingest.New(s.repo, pipelineOpts...)

	if n, err := s.repo.Count(ctx); err == nil {
		metrics.UpdateRepositoryRecords(n)
	}

	s.started = true
	s.logger.Info(ctx, "score service started",
		logger.String("aggregation_strategy", s.aggregate.Strategy()),
		logger.String("ranking_strategy", strategy.Name()),
		logger.Duration("cache_ttl", s.cacheTTL),
	)
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.repo.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "score service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Report returns the per-subject score-level report.
func (s *Service) Report(ctx context.Context) (aggregate.Report, error) {
	if err := s.ready(); err != nil {
		return aggregate.Report{}, err
	}
	return s.aggregate.GenerateReport(ctx)
}

// SubjectDetail returns the drill-down for one subject.
func (s *Service) SubjectDetail(ctx context.Context, subject string) (aggregate.SubjectDetail, error) {
	if err := s.ready(); err != nil {
		return aggregate.SubjectDetail{}, err
	}
	return s.aggregate.SubjectDetail(ctx, subject)
}

// ChartData returns bucket counts shaped for a grouped bar chart.
func (s *Service) ChartData(ctx context.Context) (aggregate.Chart, error) {
	if err := s.ready(); err != nil {
		return aggregate.Chart{}, err
	}
	return s.aggregate.ChartData(ctx)
}

// Dashboard returns the landing page summary.
func (s *Service) Dashboard(ctx context.Context) (aggregate.Dashboard, error) {
	if err := s.ready(); err != nil {
		return aggregate.Dashboard{}, err
	}
	return s.aggregate.Dashboard(ctx)
}

// TopStudents returns the cached group A ranking.
func (s *Service) TopStudents(ctx context.Context, limit, minSubjects int) (ranking.Result, error) {
	if err := s.ready(); err != nil {
		return ranking.Result{}, err
	}
	return s.ranker.RankGroupA(ctx, limit, minSubjects)
}

// InvalidateCache drops every cached ranking.
func (s *Service) InvalidateCache(ctx context.Context) {
	if s.ready() != nil {
		return
	}
	s.ranker.InvalidateCache(ctx)
}

// GetScore returns one record.
func (s *Service) GetScore(ctx context.Context, id string) (score.Record, error) {
	if err := s.ready(); err != nil {
		return score.Record{}, err
	}
	return s.repo.Get(ctx, id)
}

// ListScores returns a page of records. A non-positive limit means
// MaxPageSize; larger limits are clamped to it.
func (s *Service) ListScores(ctx context.Context, offset, limit int) (Page, error) {
	if err := s.ready(); err != nil {
		return Page{}, err
	}
	if offset < 0 {
		return Page{}, fmt.Errorf("offset %d: %w", offset, repository.ErrInvalidPageArg)
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	items, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return Page{}, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []score.Record{}
	}
	return Page{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

// CreateScore inserts a new record.
func (s *Service) CreateScore(ctx context.Context, rec score.Record) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return err
	}
	s.mutated(ctx, "create", rec.RegistrationNumber)
	return nil
}

// UpdateScore overwrites an existing record.
func (s *Service) UpdateScore(ctx context.Context, rec score.Record) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return err
	}
	s.mutated(ctx, "update", rec.RegistrationNumber)
	return nil
}

// DeleteScore removes a record.
func (s *Service) DeleteScore(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.mutated(ctx, "delete", id)
	return nil
}

func (s *Service) mutated(ctx context.Context, op, id string) {
	s.ranker.InvalidateCache(ctx)
	s.logger.Debug(ctx, "record changed", logger.String("op", op), logger.String("sbd", id))
}

// Import runs the CSV pipeline. The ranking cache is invalidated after every
// run that wrote data.
func (s *Service) Import(ctx context.Context, path string, opts ingest.Options) (ingest.Result, error) {
	if err := s.ready(); err != nil {
		return ingest.Result{}, err
	}
	return s.pipeline.Import(ctx, path, opts)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	st := Stats{
		Started:             started,
		AggregationStrategy: s.aggregationStrategy,
		RankingStrategy:     s.rankingStrategy,
		CacheTTLSeconds:     int(s.cacheTTL / time.Second),
	}
	if !started {
		return st, nil
	}
	n, err := s.repo.Count(ctx)
	if err != nil {
		return st, err
	}
	st.Records = n
	metrics.UpdateRepositoryRecords(n)
	return st, nil
}
