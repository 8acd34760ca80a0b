package ranking

import (
	"context"

	"github.com/okian/scorestat/internal/adapters/repository"
	"github.com/okian/scorestat/internal/domain/score"
)

// Strategy names.
const (
	StrategyRowWise  = "row_wise"
	StrategySetBased = "set_based"
)

// Candidate is a qualifying record before rounding and sorting.
type Candidate struct {
	RegistrationNumber  string
	ForeignLanguageCode string
	Scores              map[score.Subject]float64
	Sum                 float64
	Count               int
}

// Strategy yields qualifying candidates in insertion order. A candidate
// qualifies with at least max(minSubjects, 1) present group A scores.
type Strategy interface {
	Candidates(ctx context.Context, minSubjects int) ([]Candidate, error)
	Name() string
}

// RecordSource streams every record.
type RecordSource interface {
	ListAll(ctx context.Context, fn func(score.Record) error) error
}

// TotalsSource computes sums and counts itself.
type TotalsSource interface {
	GroupTotals(ctx context.Context, subjects []score.Subject, minPresent int) ([]repository.GroupTotal, error)
}

// RowWise scans every record and sums in process.
type RowWise struct {
	Source RecordSource
}

func (RowWise) Name() string { return StrategyRowWise }

func (r RowWise) Candidates(ctx context.Context, minSubjects int) ([]Candidate, error) {
	need := max(minSubjects, 1)
	var out []Candidate
	err := r.Source.ListAll(ctx, func(rec score.Record) error {
		c := Candidate{RegistrationNumber: rec.RegistrationNumber, ForeignLanguageCode: rec.ForeignLanguageCode}
		for _, sub := range score.GroupA {
			v, ok := rec.Score(sub)
			if !ok {
				continue
			}
			if c.Scores == nil {
				c.Scores = make(map[score.Subject]float64, len(score.GroupA))
			}
			c.Scores[sub] = v
			c.Sum += v
			c.Count++
		}
		if c.Count >= need {
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// SetBased lets the store compute sums and counts.
type SetBased struct {
	Source TotalsSource
}

func (SetBased) Name() string { return StrategySetBased }

func (s SetBased) Candidates(ctx context.Context, minSubjects int) ([]Candidate, error) {
	totals, err := s.Source.GroupTotals(ctx, score.GroupA, minSubjects)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(totals))
	for _, g := range totals {
		out = append(out, Candidate{
			RegistrationNumber:  g.RegistrationNumber,
			ForeignLanguageCode: g.ForeignLanguageCode,
			Scores:              g.Scores,
			Sum:                 g.Sum,
			Count:               g.Count,
		})
	}
	return out, nil
}
