package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorestat/internal/adapters/cache"
	"github.com/okian/scorestat/internal/adapters/repository"
	"github.com/okian/scorestat/internal/domain/score"
)

type seededStore interface {
	Source
	BulkUpsert(ctx context.Context, rows []score.Record) (repository.UpsertCounts, error)
}

func sqliteStore(t *testing.T) seededStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "rank.db") + "?_pragma=busy_timeout(5000)"
	db, err := repository.Open(context.Background(), repository.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := repository.NewSQLStore(db, repository.DriverSQLite)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(id string, math, physics, chemistry *float64) score.Record {
	return score.Record{RegistrationNumber: id, Math: math, Physics: physics, Chemistry: chemistry}
}

var f = score.Float

// population has ties, partial candidates and a record with no group A score.
func population() []score.Record {
	return []score.Record{
		rec("T1", f(9), f(9), nil),
		rec("P1", f(7), nil, nil),
		rec("T2", nil, f(9), f(9)),
		{RegistrationNumber: "X1", Literature: f(10), Biology: f(10)},
		rec("H1", f(10), f(10), f(10)),
		rec("T3", f(9), nil, f(9)),
		rec("L1", f(1.25), f(2), f(0)),
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.RegistrationNumber
	}
	return out
}

func TestRankGroupA(t *testing.T) {
	Convey("Given the A1/A2 pair", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		_, _ = store.BulkUpsert(ctx, []score.Record{rec("A1", f(8.5), nil, f(7.0)), rec("A2", nil, f(6.0), f(6.0))})

		res, err := NewEngine(RowWise{Source: store}).RankGroupA(ctx, 10, 2)

		Convey("Then A1 ranks above A2", func() {
			So(err, ShouldBeNil)
			So(len(res.TopStudents), ShouldEqual, 2)
			a1, a2 := res.TopStudents[0], res.TopStudents[1]
			So(a1.RegistrationNumber, ShouldEqual, "A1")
			So(a1.Rank, ShouldEqual, 1)
			So(a1.TotalScore, ShouldEqual, 15.5)
			So(a1.AverageScore, ShouldEqual, 7.75)
			So(a1.SubjectsCount, ShouldEqual, 2)
			So(a1.SubjectScores, ShouldResemble, map[string]float64{"math": 8.5, "chemistry": 7.0})
			So(a2.RegistrationNumber, ShouldEqual, "A2")
			So(a2.Rank, ShouldEqual, 2)
			So(a2.TotalScore, ShouldEqual, 12.0)
			So(a2.AverageScore, ShouldEqual, 6.0)
		})

		Convey("Then the criteria echo the request", func() {
			So(res.Criteria.Group, ShouldEqual, "A")
			So(res.Criteria.Subjects, ShouldResemble, []string{"Mathematics", "Physics", "Chemistry"})
			So(res.Criteria.RankingMethod, ShouldEqual, "Total score in Group A subjects")
			So(res.Criteria.MinimumSubjects, ShouldEqual, 2)
			So(res.Criteria.Limit, ShouldEqual, 10)
		})
	})

	Convey("Given a population with ties", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		_, _ = store.BulkUpsert(ctx, population())
		e := NewEngine(RowWise{Source: store})

		Convey("When ranking with min subjects 2", func() {
			res, err := e.RankGroupA(ctx, 10, 2)

			Convey("Then ties keep insertion order and partial candidates drop out", func() {
				So(err, ShouldBeNil)
				So(ids(res.TopStudents), ShouldResemble, []string{"H1", "T1", "T2", "T3", "L1"})
				So(res.TopStudents[4].TotalScore, ShouldEqual, 3.25)
				So(res.TopStudents[4].AverageScore, ShouldEqual, 1.08)
			})

			Convey("Then the summary covers the full population", func() {
				So(res.Summary.TotalGroupAStudents, ShouldEqual, 5)
				So(res.Summary.TopStudentsCount, ShouldEqual, 5)
				So(res.Summary.AllStudentsStats.HighestTotal, ShouldEqual, 30)
				So(res.Summary.AllStudentsStats.LowestTotal, ShouldEqual, 3.25)
			})
		})

		Convey("When ranking with min subjects 0", func() {
			res, err := e.RankGroupA(ctx, 50, 0)

			Convey("Then the record without group A scores is still excluded", func() {
				So(err, ShouldBeNil)
				So(ids(res.TopStudents), ShouldNotContain, "X1")
				So(ids(res.TopStudents), ShouldContain, "P1")
				So(res.Summary.TotalGroupAStudents, ShouldEqual, 6)
			})
		})

		Convey("When the limit is smaller than the population", func() {
			res, err := e.RankGroupA(ctx, 2, 1)

			Convey("Then top stats cover the slice and all stats the population", func() {
				So(err, ShouldBeNil)
				So(len(res.TopStudents), ShouldEqual, 2)
				So(res.Summary.TotalGroupAStudents, ShouldEqual, 6)
				So(res.Summary.TopStudentsCount, ShouldEqual, 2)
				So(res.Summary.TopStudentsStats.LowestTotal, ShouldEqual, 18)
				So(res.Summary.AllStudentsStats.LowestTotal, ShouldEqual, 3.25)
			})
		})
	})

	Convey("Given many candidates", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		rows := make([]score.Record, 0, 80)
		for i := range 80 {
			rows = append(rows, rec(fmt.Sprintf("S%03d", i), f(float64(i%10)), f(5), nil))
		}
		_, _ = store.BulkUpsert(ctx, rows)
		e := NewEngine(RowWise{Source: store})

		Convey("Then a limit of 1000 is clamped to 50", func() {
			res, err := e.RankGroupA(ctx, 1000, 1)
			So(err, ShouldBeNil)
			So(len(res.TopStudents), ShouldEqual, 50)
			So(res.Criteria.Limit, ShouldEqual, 50)
			So(res.TopStudents[49].Rank, ShouldEqual, 50)
		})

		Convey("Then a non-positive limit falls back to 10", func() {
			res, err := e.RankGroupA(ctx, 0, 1)
			So(err, ShouldBeNil)
			So(len(res.TopStudents), ShouldEqual, 10)
			So(res.Criteria.Limit, ShouldEqual, 10)
		})
	})

	Convey("Given an empty store", t, func() {
		res, err := NewEngine(RowWise{Source: repository.NewMemoryStore()}).RankGroupA(context.Background(), 10, 2)

		Convey("Then the summary is all zero", func() {
			So(err, ShouldBeNil)
			So(len(res.TopStudents), ShouldEqual, 0)
			So(res.Summary, ShouldResemble, Summary{})
		})
	})
}

func TestStrategyEquivalence(t *testing.T) {
	Convey("Given the same population in the memory and sqlite stores", t, func() {
		ctx := context.Background()
		stores := map[string]seededStore{
			"memory": repository.NewMemoryStore(),
			"sqlite": sqliteStore(t),
		}
		for _, s := range stores {
			_, err := s.BulkUpsert(ctx, population())
			So(err, ShouldBeNil)
		}

		Convey("Then row-wise and set-based rankings are identical", func() {
			for _, s := range stores {
				for _, minSubjects := range []int{0, 1, 2, 3} {
					rw, err := NewEngine(RowWise{Source: s}).RankGroupA(ctx, 10, minSubjects)
					So(err, ShouldBeNil)
					sb, err := NewEngine(SetBased{Source: s}).RankGroupA(ctx, 10, minSubjects)
					So(err, ShouldBeNil)
					So(sb, ShouldResemble, rw)
				}
			}
		})
	})

	Convey("Given an unknown strategy name", t, func() {
		_, err := NewStrategy("magic", repository.NewMemoryStore())
		So(errors.Is(err, score.ErrValidation), ShouldBeTrue)
	})
}

// countingRanker records how often the wrapped computation runs.
type countingRanker struct {
	next  Ranker
	calls int
}

func (c *countingRanker) RankGroupA(ctx context.Context, limit, minSubjects int) (Result, error) {
	c.calls++
	return c.next.RankGroupA(ctx, limit, minSubjects)
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (brokenCache) Delete(context.Context, string) error { return errors.New("down") }

func jsonOf(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestCached(t *testing.T) {
	Convey("CacheKey is a pure function of its parameters", t, func() {
		So(CacheKey(10, 2), ShouldEqual, CacheKey(10, 2))
		So(CacheKey(10, 2), ShouldNotEqual, CacheKey(10, 3))
		So(CacheKey(10, 2), ShouldStartWith, "top_students_group_a_")
		So(len(CacheKey(10, 2)), ShouldEqual, len("top_students_group_a_")+8)
	})

	Convey("Given a cached ranker over a counting engine", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		_, _ = store.BulkUpsert(ctx, population())
		counter := &countingRanker{next: NewEngine(RowWise{Source: store})}
		mem := cache.NewMemory()
		c := NewCached(counter, mem, WithTTL(time.Minute))

		first, err := c.RankGroupA(ctx, 10, 2)
		So(err, ShouldBeNil)

		Convey("When asked again within the TTL", func() {
			second, err := c.RankGroupA(ctx, 10, 2)

			Convey("Then the payload is served from the cache", func() {
				So(err, ShouldBeNil)
				So(counter.calls, ShouldEqual, 1)
				So(jsonOf(second), ShouldEqual, jsonOf(first))
			})
		})

		Convey("When the limit differs only above the clamp", func() {
			_, _ = c.RankGroupA(ctx, 100, 2)
			_, _ = c.RankGroupA(ctx, 50, 2)

			Convey("Then both share one entry", func() {
				So(counter.calls, ShouldEqual, 2)
			})
		})

		Convey("When the cache is invalidated", func() {
			c.InvalidateCache(ctx)
			_, err := c.RankGroupA(ctx, 10, 2)

			Convey("Then the ranking is recomputed and the old key evicted", func() {
				So(err, ShouldBeNil)
				So(counter.calls, ShouldEqual, 2)
				_, ok, _ := mem.Get(ctx, versioned(0, CacheKey(10, 2)))
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given a cache that always fails", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		_, _ = store.BulkUpsert(ctx, population())
		counter := &countingRanker{next: NewEngine(RowWise{Source: store})}
		c := NewCached(counter, brokenCache{})

		Convey("Then every call degrades to a computation", func() {
			res, err := c.RankGroupA(ctx, 10, 2)
			So(err, ShouldBeNil)
			So(len(res.TopStudents), ShouldEqual, 5)
			_, err = c.RankGroupA(ctx, 10, 2)
			So(err, ShouldBeNil)
			So(counter.calls, ShouldEqual, 2)
			So(func() { c.InvalidateCache(ctx) }, ShouldNotPanic)
		})
	})
}
