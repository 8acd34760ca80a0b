package sample

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorestat/internal/adapters/repository"
	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/internal/ingest"
)

func TestRecords(t *testing.T) {
	ctx := context.Background()

	Convey("Given a seeded generator", t, func() {
		recs, err := Records(ctx, Config{Rows: 200, Seed: 7, Workers: 3})
		So(err, ShouldBeNil)
		So(recs, ShouldHaveLength, 200)

		Convey("Then registration numbers are sequential and zero padded", func() {
			So(recs[0].RegistrationNumber, ShouldEqual, "01000001")
			So(recs[199].RegistrationNumber, ShouldEqual, "01000200")
		})

		Convey("Then every score is a quarter point inside [0, 10]", func() {
			for _, r := range recs {
				for _, s := range score.All() {
					v, ok := r.Score(s)
					if !ok {
						continue
					}
					So(v, ShouldBeBetweenOrEqual, 0.0, 10.0)
					So(v*4, ShouldEqual, float64(int(v*4)))
				}
			}
		})

		Convey("Then every candidate sits math, literature and one science block", func() {
			for _, r := range recs {
				So(r.PresentCount([]score.Subject{score.Math, score.Literature}), ShouldEqual, 2)
				n, s := r.PresentCount(natural), r.PresentCount(social)
				So(n+s, ShouldEqual, 3)
				So(n == 0 || s == 0, ShouldBeTrue)
			}
		})

		Convey("Then the worker count does not change the output", func() {
			again, err := Records(ctx, Config{Rows: 200, Seed: 7, Workers: 1})
			So(err, ShouldBeNil)
			So(again, ShouldResemble, recs)
		})

		Convey("Then another seed gives other data", func() {
			other, err := Records(ctx, Config{Rows: 200, Seed: 8})
			So(err, ShouldBeNil)
			So(other, ShouldNotResemble, recs)
		})
	})

	Convey("Given a negative row count", t, func() {
		_, err := Records(ctx, Config{Rows: -1})
		So(err, ShouldNotBeNil)
	})

	Convey("Given a cancelled context", t, func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Records(cctx, Config{Rows: 10})
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ctx := context.Background()

	Convey("Given a generated file", t, func() {
		var buf bytes.Buffer
		So(WriteCSV(ctx, &buf, Config{Rows: 150, Seed: 42}), ShouldBeNil)
		path := filepath.Join(t.TempDir(), "sample.csv")
		So(os.WriteFile(path, buf.Bytes(), 0o600), ShouldBeNil)

		Convey("When it is imported", func() {
			store := repository.NewMemoryStore()
			res, err := ingest.New(store).Import(ctx, path, ingest.Options{BatchSize: 64})
			So(err, ShouldBeNil)

			Convey("Then every row is accepted", func() {
				So(res.Rows, ShouldEqual, 150)
				So(res.Created, ShouldEqual, 150)
				So(res.Errors, ShouldEqual, 0)
			})

			Convey("Then stored records match the generated ones", func() {
				want, err := Records(ctx, Config{Rows: 150, Seed: 42})
				So(err, ShouldBeNil)
				got, err := store.Get(ctx, want[17].RegistrationNumber)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, want[17])
			})
		})
	})
}
