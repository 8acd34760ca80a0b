package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorestat/internal/adapters/http/api"
	service "github.com/okian/scorestat/internal/app"
	"github.com/okian/scorestat/internal/domain/aggregate"
	"github.com/okian/scorestat/internal/domain/score"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newHandler(t *testing.T, deps api.Dependencies) http.Handler {
	t.Helper()
	return api.NewServer(deps).Handler(context.Background())
}

func startedService(t *testing.T) *service.Service {
	t.Helper()
	svc := service.New()
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func do(h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func seed(t *testing.T, svc *service.Service) {
	t.Helper()
	ctx := context.Background()
	for _, rec := range []score.Record{
		{RegistrationNumber: "A1", Math: score.Float(8.5), Chemistry: score.Float(7)},
		{RegistrationNumber: "A2", Physics: score.Float(6), Chemistry: score.Float(6)},
	} {
		if err := svc.CreateScore(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestReportRoutes(t *testing.T) {
	Convey("Given a seeded service behind the router", t, func() {
		svc := startedService(t)
		seed(t, svc)
		h := newHandler(t, svc)

		Convey("When requesting the report with and without the trailing slash", func() {
			for _, path := range []string{"/api/score-report/", "/api/score-report"} {
				w, env := do(h, http.MethodGet, path, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(env.Success, ShouldBeTrue)
				var rep aggregate.Report
				So(json.Unmarshal(env.Data, &rep), ShouldBeNil)
				So(len(rep.Subjects), ShouldEqual, 9)
				So(rep.Summary.TotalScoresAnalyzed, ShouldEqual, 4)
			}
		})

		Convey("When requesting a subject detail", func() {
			w, env := do(h, http.MethodGet, "/api/score-report/subject/chemistry/", "")

			Convey("Then the statistics are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var d aggregate.SubjectDetail
				So(json.Unmarshal(env.Data, &d), ShouldBeNil)
				So(d.TotalStudents, ShouldEqual, 2)
				So(d.Statistics.AverageScore, ShouldEqual, 6.5)
			})
		})

		Convey("When the subject is unknown", func() {
			w, env := do(h, http.MethodGet, "/api/score-report/subject/astronomy/", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(env.Success, ShouldBeFalse)
			So(env.Error, ShouldContainSubstring, "astronomy")
		})

		Convey("When nobody sat the subject", func() {
			w, env := do(h, http.MethodGet, "/api/score-report/subject/history/", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(env.Success, ShouldBeFalse)
		})

		Convey("When requesting chart data", func() {
			w, _ := do(h, http.MethodGet, "/api/score-report/chart-data/", "")

			Convey("Then chartData and metadata sit next to success", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]json.RawMessage
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(string(body["success"]), ShouldEqual, "true")
				So(body, ShouldContainKey, "chartData")
				So(body, ShouldContainKey, "metadata")
			})
		})

		Convey("When requesting the dashboard", func() {
			w, env := do(h, http.MethodGet, "/api/dashboard/summary/", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var d aggregate.Dashboard
			So(json.Unmarshal(env.Data, &d), ShouldBeNil)
			So(d.TotalStudents, ShouldEqual, 2)
		})
	})
}

func TestTopStudentsRoute(t *testing.T) {
	Convey("Given a seeded service behind the router", t, func() {
		svc := startedService(t)
		seed(t, svc)
		h := newHandler(t, svc)

		Convey("When ranking with defaults", func() {
			w, env := do(h, http.MethodGet, "/api/top-students/group-a/", "")

			Convey("Then A1 leads", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res struct {
					TopStudents []struct {
						RegistrationNumber string  `json:"registration_number"`
						TotalScore         float64 `json:"total_score"`
						Rank               int     `json:"rank"`
					} `json:"top_students"`
					Criteria struct {
						Limit int `json:"limit"`
					} `json:"criteria"`
				}
				So(json.Unmarshal(env.Data, &res), ShouldBeNil)
				So(len(res.TopStudents), ShouldEqual, 2)
				So(res.TopStudents[0].RegistrationNumber, ShouldEqual, "A1")
				So(res.TopStudents[0].TotalScore, ShouldEqual, 15.5)
				So(res.Criteria.Limit, ShouldEqual, 10)
			})
		})

		Convey("When the limit is too large it is clamped", func() {
			w, env := do(h, http.MethodGet, "/api/top-students/group-a/?limit=1000&min_subjects=1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(string(env.Data), ShouldContainSubstring, `"limit":50`)
		})

		Convey("When a parameter is not an integer", func() {
			for _, q := range []string{"limit=ten", "min_subjects=1.5"} {
				w, env := do(h, http.MethodGet, "/api/top-students/group-a/?"+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(env.Success, ShouldBeFalse)
				So(env.Error, ShouldContainSubstring, "integer")
			}
		})
	})
}

func TestScoresRoutes(t *testing.T) {
	Convey("Given an empty service behind the router", t, func() {
		svc := startedService(t)
		h := newHandler(t, svc)

		Convey("When a record is created", func() {
			w, env := do(h, http.MethodPost, "/api/scores/", `{"registration_number":" S1 ","math":9.5,"foreign_language_code":"N1"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(env.Success, ShouldBeTrue)

			Convey("Then it can be fetched and listed", func() {
				w, env := do(h, http.MethodGet, "/api/scores/S1/", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(string(env.Data), ShouldContainSubstring, `"math":9.5`)

				w, env = do(h, http.MethodGet, "/api/scores/?offset=0&limit=10", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(string(env.Data), ShouldContainSubstring, `"total":1`)
			})

			Convey("Then a duplicate conflicts", func() {
				w, env := do(h, http.MethodPost, "/api/scores/", `{"registration_number":"S1"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(env.Success, ShouldBeFalse)
			})

			Convey("Then it can be updated and deleted", func() {
				w, _ := do(h, http.MethodPut, "/api/scores/S1/", `{"physics":7}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				rec, err := svc.GetScore(context.Background(), "S1")
				So(err, ShouldBeNil)
				So(*rec.Physics, ShouldEqual, 7.0)

				w, _ = do(h, http.MethodDelete, "/api/scores/S1/", "")
				So(w.Code, ShouldEqual, http.StatusNoContent)
				w, _ = do(h, http.MethodGet, "/api/scores/S1/", "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When input is malformed", func() {
			w, _ := do(h, http.MethodPost, "/api/scores/", `{not json`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			w, _ = do(h, http.MethodPost, "/api/scores/", `{"math":1}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			w, _ = do(h, http.MethodGet, "/api/scores/?offset=-1", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			w, _ = do(h, http.MethodPut, "/api/scores/ghost/", `{}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

// failingDeps fails the report and stats reads; everything else hits a
// service that was never started.
type failingDeps struct{ *service.Service }

func (failingDeps) Report(context.Context) (aggregate.Report, error) {
	return aggregate.Report{}, errors.New("database is locked")
}

func (failingDeps) Stats(context.Context) (service.Stats, error) {
	return service.Stats{}, errors.New("database is locked")
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given a started service", t, func() {
		h := newHandler(t, startedService(t))

		Convey("Then /healthz reports ok", func() {
			w, _ := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then /metrics exposes the custom registry", func() {
			_, _ = do(h, http.MethodGet, "/api/score-report/", "")
			w, _ := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "scorestat_")
		})

		Convey("Then an unknown /api path is an enveloped 404", func() {
			w, env := do(h, http.MethodGet, "/api/no-such-thing/", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(env.Success, ShouldBeFalse)
			So(env.Error, ShouldEqual, "not found")
		})

		Convey("Then /api/stats is enveloped", func() {
			w, env := do(h, http.MethodGet, "/api/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(string(env.Data), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then CORS preflight is answered", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/score-report/", http.NoBody)
			req.Header.Set("Origin", "http://example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldNotBeEmpty)
		})
	})

	Convey("Given dependencies that fail", t, func() {
		h := newHandler(t, failingDeps{Service: service.New()})

		Convey("Then an unhandled failure is a 500 envelope", func() {
			w, env := do(h, http.MethodGet, "/api/score-report/", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(env.Success, ShouldBeFalse)
			So(env.Error, ShouldContainSubstring, "database is locked")
		})

		Convey("Then health is unavailable", func() {
			w, _ := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})

	Convey("Given a service that was never started", t, func() {
		h := newHandler(t, service.New())
		w, env := do(h, http.MethodGet, "/api/dashboard/summary/", "")
		So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		So(env.Success, ShouldBeFalse)
	})
}
