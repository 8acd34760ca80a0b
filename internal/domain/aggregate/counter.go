// Package aggregate computes score-level statistics over the score store.
package aggregate

import (
	"context"

	"github.com/okian/scorestat/internal/domain/score"
)

// Strategy names.
const (
	StrategyRowWise  = "row_wise"
	StrategySetBased = "set_based"
)

// BucketCounter tallies the present scores of one subject per bucket.
type BucketCounter interface {
	Counts(ctx context.Context, subject score.Subject) (score.LevelCounts, error)
	Name() string
}

// ScoreSource yields raw present scores.
type ScoreSource interface {
	ScoresForSubject(ctx context.Context, subject score.Subject) ([]float64, error)
}

// BucketSource evaluates bucket predicates itself.
type BucketSource interface {
	AggregateBucketCounts(ctx context.Context, subject score.Subject, t score.Thresholds) (score.LevelCounts, error)
}

// RowWise folds every present value in process.
type RowWise struct {
	Source ScoreSource
}

func (RowWise) Name() string { return StrategyRowWise }

func (r RowWise) Counts(ctx context.Context, subject score.Subject) (score.LevelCounts, error) {
	vals, err := r.Source.ScoresForSubject(ctx, subject)
	if err != nil {
		return score.LevelCounts{}, err
	}
	var c score.LevelCounts
	for _, v := range vals {
		c.Add(score.Boundaries.Classify(v))
	}
	return c, nil
}

// SetBased pushes the bucket predicates down to the store.
type SetBased struct {
	Source BucketSource
}

func (SetBased) Name() string { return StrategySetBased }

func (s SetBased) Counts(ctx context.Context, subject score.Subject) (score.LevelCounts, error) {
	return s.Source.AggregateBucketCounts(ctx, subject, score.Boundaries)
}
