package aggregate

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/scorestat/internal/adapters/repository"
	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/pkg/metrics"
)

// Store is everything the engine reads.
type Store interface {
	ScoreSource
	BucketSource
	SubjectAverages(ctx context.Context) (repository.Averages, error)
}

// Engine builds reports on top of a BucketCounter.
type Engine struct {
	store   Store
	counter BucketCounter
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCounter selects the bucket counting backend.
func WithCounter(c BucketCounter) Option {
	return func(e *Engine) {
		if c != nil {
			e.counter = c
		}
	}
}

// WithStrategy selects a counter by name. Unknown names keep the default.
func WithStrategy(name string) Option {
	return func(e *Engine) {
		switch name {
		case StrategyRowWise:
			e.counter = RowWise{Source: e.store}
		case StrategySetBased:
			e.counter = SetBased{Source: e.store}
		}
	}
}

// WithClock replaces time.Now for generated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs an engine. The set-based counter is the default.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, counter: SetBased{Source: store}, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategy returns the active counter name.
func (e *Engine) Strategy() string { return e.counter.Name() }

func (e *Engine) observe(op string, start time.Time) {
	metrics.RecordAggregationLatency(op, e.counter.Name(), float64(time.Since(start).Microseconds())/1000)
}

func (e *Engine) stamp() string {
	return e.now().Format(time.RFC3339)
}

// SubjectLevelCounts tallies the present scores of subject.
func (e *Engine) SubjectLevelCounts(ctx context.Context, subject score.Subject) (score.LevelCounts, error) {
	c, err := e.counter.Counts(ctx, subject)
	if err != nil {
		return score.LevelCounts{}, fmt.Errorf("level counts %s: %w", subject, err)
	}
	return c, nil
}

// allCounts computes every subject concurrently. The result is indexed in
// the fixed subject order.
func (e *Engine) allCounts(ctx context.Context) ([]score.LevelCounts, error) {
	subjects := score.All()
	out := make([]score.LevelCounts, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range subjects {
		g.Go(func() error {
			c, err := e.SubjectLevelCounts(gctx, sub)
			if err != nil {
				return err
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateReport returns per-subject counts with a global summary.
func (e *Engine) GenerateReport(ctx context.Context) (Report, error) {
	defer e.observe("report", time.Now())
	counts, err := e.allCounts(ctx)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Subjects: make([]SubjectStats, 0, len(counts)), ScoreLevels: Levels}
	var total score.LevelCounts
	for i, sub := range score.All() {
		rep.Subjects = append(rep.Subjects, SubjectStats{
			Subject:     sub.Key(),
			SubjectName: sub.DisplayName(),
			Statistics:  counts[i],
		})
		total.Merge(counts[i])
	}
	rep.Summary = Summary{
		TotalScoresAnalyzed: total.Total,
		OverallDistribution: distributionOf(total),
		Percentages:         percentagesOf(total),
	}
	return rep, nil
}

// SubjectDetail returns counts and descriptive statistics for the named
// subject. Unknown names are a score.ValidationError; a subject without any
// present score is a score.NotFoundError.
func (e *Engine) SubjectDetail(ctx context.Context, name string) (SubjectDetail, error) {
	defer e.observe("subject_detail", time.Now())
	sub, err := score.ParseSubject(name)
	if err != nil {
		return SubjectDetail{}, err
	}
	vals, err := e.store.ScoresForSubject(ctx, sub)
	if err != nil {
		return SubjectDetail{}, fmt.Errorf("scores for %s: %w", sub, err)
	}
	if len(vals) == 0 {
		return SubjectDetail{}, &score.NotFoundError{What: "scores for subject", Key: sub.Key()}
	}

	var (
		c   score.LevelCounts
		sum float64
	)
	for _, v := range vals {
		c.Add(score.Classify(v))
		sum += v
	}
	return SubjectDetail{
		Subject:           sub.Key(),
		SubjectName:       sub.DisplayName(),
		TotalStudents:     c.Total,
		ScoreDistribution: distributionOf(c),
		Percentages:       percentagesOf(c),
		Statistics: DetailStats{
			AverageScore: score.Round2(sum / float64(len(vals))),
			HighestScore: slices.Max(vals),
			LowestScore:  slices.Min(vals),
		},
	}, nil
}

// ChartData reshapes the per-subject counts into one series per bucket.
func (e *Engine) ChartData(ctx context.Context) (Chart, error) {
	defer e.observe("chart", time.Now())
	counts, err := e.allCounts(ctx)
	if err != nil {
		return Chart{}, err
	}

	subjects := score.All()
	datasets := make([]ChartDataset, 0, len(score.Buckets))
	for _, b := range score.Buckets {
		ds := ChartDataset{
			Label:           b.ChartLabel(),
			Data:            make([]int, len(subjects)),
			BackgroundColor: b.Background(),
			BorderColor:     b.Border(),
			BorderWidth:     1,
		}
		for i := range subjects {
			ds.Data[i] = counts[i].Get(b)
		}
		datasets = append(datasets, ds)
	}
	return Chart{
		Data: ChartData{Labels: score.DisplayNames(subjects), Datasets: datasets},
		Metadata: ChartMetadata{
			TotalSubjects: len(subjects),
			ScoreLevels:   len(score.Buckets),
			GeneratedAt:   e.stamp(),
		},
	}, nil
}

// Dashboard returns record totals, subject means and the summed distribution.
func (e *Engine) Dashboard(ctx context.Context) (Dashboard, error) {
	defer e.observe("dashboard", time.Now())
	avgs, err := e.store.SubjectAverages(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("subject averages: %w", err)
	}
	counts, err := e.allCounts(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	subjects := score.All()
	d := Dashboard{
		TotalStudents:           avgs.Records,
		AverageScoresPerSubject: make(map[string]float64, len(subjects)),
		GeneratedAt:             e.stamp(),
	}
	var (
		sum   float64
		total score.LevelCounts
	)
	for i, sub := range subjects {
		avg := score.Round2(avgs.Mean[sub])
		d.AverageScoresPerSubject[sub.Key()] = avg
		sum += avg
		total.Merge(counts[i])
	}
	d.OverallAverageScore = score.Round2(sum / float64(len(subjects)))
	d.ScoreDistribution = distributionOf(total)
	return d, nil
}
