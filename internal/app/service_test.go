package service_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorestat/internal/adapters/cache"
	"github.com/okian/scorestat/internal/adapters/repository"
	service "github.com/okian/scorestat/internal/app"
	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func started(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New()

		Convey("Then operations fail before Start", func() {
			_, err := svc.Report(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			st, err := svc.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.Started, ShouldBeFalse)
		})

		Convey("When started twice and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			st, err := svc.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.Started, ShouldBeTrue)
			So(st.AggregationStrategy, ShouldEqual, "set_based")
			So(st.RankingStrategy, ShouldEqual, "row_wise")
			So(st.CacheTTLSeconds, ShouldEqual, 300)
			svc.Stop()

			Convey("Then it reports stopped", func() {
				st, _ := svc.Stats(ctx)
				So(st.Started, ShouldBeFalse)
			})
		})
	})

	Convey("Given an unknown strategy", t, func() {
		err := service.New(service.WithRankingStrategy("magic")).Start(context.Background())
		So(errors.Is(err, score.ErrValidation), ShouldBeTrue)
		err = service.New(service.WithAggregationStrategy("magic")).Start(context.Background())
		So(errors.Is(err, score.ErrValidation), ShouldBeTrue)
	})
}

func TestService_CRUD(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := started(t)

		Convey("When creating a record", func() {
			err := svc.CreateScore(ctx, score.Record{RegistrationNumber: "C1", Math: score.Float(9)})
			So(err, ShouldBeNil)

			Convey("Then it can be read back and listed", func() {
				rec, err := svc.GetScore(ctx, "C1")
				So(err, ShouldBeNil)
				So(*rec.Math, ShouldEqual, 9.0)
				page, err := svc.ListScores(ctx, 0, 0)
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 1)
				So(page.Limit, ShouldEqual, service.MaxPageSize)
			})

			Convey("Then a duplicate is rejected", func() {
				err := svc.CreateScore(ctx, score.Record{RegistrationNumber: "C1"})
				So(errors.Is(err, repository.ErrAlreadyExists), ShouldBeTrue)
			})

			Convey("Then update overwrites and delete removes", func() {
				So(svc.UpdateScore(ctx, score.Record{RegistrationNumber: "C1", Physics: score.Float(4)}), ShouldBeNil)
				rec, _ := svc.GetScore(ctx, "C1")
				So(rec.Math, ShouldBeNil)
				So(*rec.Physics, ShouldEqual, 4.0)
				So(svc.DeleteScore(ctx, "C1"), ShouldBeNil)
				_, err := svc.GetScore(ctx, "C1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("Then invalid input is rejected", func() {
			So(errors.Is(svc.CreateScore(ctx, score.Record{}), score.ErrValidation), ShouldBeTrue)
			So(errors.Is(svc.UpdateScore(ctx, score.Record{RegistrationNumber: "nope"}), repository.ErrNotFound), ShouldBeTrue)
			So(errors.Is(svc.DeleteScore(ctx, "nope"), repository.ErrNotFound), ShouldBeTrue)
			_, err := svc.ListScores(ctx, -1, 10)
			So(errors.Is(err, repository.ErrInvalidPageArg), ShouldBeTrue)
		})
	})
}

func TestService_MutationsInvalidateRanking(t *testing.T) {
	Convey("Given a service with a cached ranking", t, func() {
		ctx := context.Background()
		svc := started(t, service.WithCache(cache.NewMemory()))
		So(svc.CreateScore(ctx, score.Record{RegistrationNumber: "R1", Math: score.Float(5), Physics: score.Float(5)}), ShouldBeNil)

		first, err := svc.TopStudents(ctx, 10, 2)
		So(err, ShouldBeNil)
		So(len(first.TopStudents), ShouldEqual, 1)

		Convey("When a better candidate is created", func() {
			So(svc.CreateScore(ctx, score.Record{RegistrationNumber: "R2", Math: score.Float(9), Physics: score.Float(9)}), ShouldBeNil)
			res, err := svc.TopStudents(ctx, 10, 2)

			Convey("Then the next ranking sees it", func() {
				So(err, ShouldBeNil)
				So(len(res.TopStudents), ShouldEqual, 2)
				So(res.TopStudents[0].RegistrationNumber, ShouldEqual, "R2")
			})
		})

		Convey("When the candidate is deleted", func() {
			So(svc.DeleteScore(ctx, "R1"), ShouldBeNil)
			res, err := svc.TopStudents(ctx, 10, 2)

			Convey("Then the ranking is empty", func() {
				So(err, ShouldBeNil)
				So(len(res.TopStudents), ShouldEqual, 0)
			})
		})
	})
}
