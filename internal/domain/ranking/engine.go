package ranking

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/pkg/logger"
	"github.com/okian/scorestat/pkg/metrics"
)

// Source is what both strategies can read from.
type Source interface {
	RecordSource
	TotalsSource
}

// NewStrategy returns the strategy registered under name.
func NewStrategy(name string, src Source) (Strategy, error) {
	switch name {
	case StrategyRowWise:
		return RowWise{Source: src}, nil
	case StrategySetBased:
		return SetBased{Source: src}, nil
	default:
		return nil, &score.ValidationError{Field: "ranking_strategy", Value: name, Reason: "unknown strategy"}
	}
}

// Engine ranks candidates produced by a Strategy.
type Engine struct {
	strategy Strategy
	log      logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine constructs an engine over strategy.
func NewEngine(strategy Strategy, opts ...Option) *Engine {
	e := &Engine{strategy: strategy}
	if logger.Initialized() {
		e.log = logger.Named("ranking")
	} else {
		e.log = logger.Discard()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategy returns the active strategy name.
func (e *Engine) Strategy() string { return e.strategy.Name() }

// RankGroupA implements Ranker.
//
// The limit is clamped by ClampLimit. Candidates need at least one present
// group A score and at least minSubjects of them. Ties on total, average and
// count keep insertion order.
func (e *Engine) RankGroupA(ctx context.Context, limit, minSubjects int) (Result, error) {
	limit = ClampLimit(limit)
	start := time.Now()

	cands, err := e.strategy.Candidates(ctx, minSubjects)
	if err != nil {
		return Result{}, fmt.Errorf("rank group a: %w", err)
	}
	metrics.RecordRankingComputation(e.strategy.Name())

	all := make([]Entry, 0, len(cands))
	for _, c := range cands {
		all = append(all, entryOf(c))
	}
	slices.SortStableFunc(all, func(a, b Entry) int {
		if n := cmp.Compare(b.TotalScore, a.TotalScore); n != 0 {
			return n
		}
		if n := cmp.Compare(b.AverageScore, a.AverageScore); n != 0 {
			return n
		}
		return cmp.Compare(b.SubjectsCount, a.SubjectsCount)
	})

	top := all[:min(limit, len(all))]
	for i := range top {
		top[i].Rank = i + 1
	}

	e.log.Debug(ctx, "ranked group a",
		logger.String("strategy", e.strategy.Name()),
		logger.Int("qualified", len(all)),
		logger.Int("returned", len(top)),
		logger.Duration("elapsed", time.Since(start)))

	return Result{
		TopStudents: slices.Clone(top),
		Summary: Summary{
			TotalGroupAStudents: len(all),
			TopStudentsCount:    len(top),
			AllStudentsStats:    statsOf(all),
			TopStudentsStats:    statsOf(top),
		},
		Criteria: Criteria{
			Group:           "A",
			Subjects:        score.DisplayNames(score.GroupA),
			RankingMethod:   rankingMethod,
			MinimumSubjects: minSubjects,
			Limit:           limit,
		},
	}, nil
}

func entryOf(c Candidate) Entry {
	scores := make(map[string]float64, len(c.Scores))
	for sub, v := range c.Scores {
		scores[sub.Key()] = v
	}
	return Entry{
		RegistrationNumber:  c.RegistrationNumber,
		SubjectScores:       scores,
		TotalScore:          score.Round2(c.Sum),
		AverageScore:        score.Round2(c.Sum / float64(c.Count)),
		SubjectsCount:       c.Count,
		ForeignLanguageCode: c.ForeignLanguageCode,
	}
}

// statsOf is all zero for an empty slice.
func statsOf(entries []Entry) Stats {
	if len(entries) == 0 {
		return Stats{}
	}
	st := Stats{HighestTotal: entries[0].TotalScore, LowestTotal: entries[0].TotalScore}
	var totals, avgs float64
	for _, e := range entries {
		st.HighestTotal = max(st.HighestTotal, e.TotalScore)
		st.LowestTotal = min(st.LowestTotal, e.TotalScore)
		totals += e.TotalScore
		avgs += e.AverageScore
	}
	n := float64(len(entries))
	st.AverageTotal = score.Round2(totals / n)
	st.AverageScoreMean = score.Round2(avgs / n)
	return st
}
