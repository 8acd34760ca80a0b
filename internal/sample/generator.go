// Package sample generates synthetic exam score files for demos and load
// testing the import path.
package sample

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/pkg/logger"
)

// FirstRegistration is the registration number of the first generated row.
const FirstRegistration = 1000001

// Performer profiles as score ranges.
const (
	avgPerformerMin    = 4.0
	avgPerformerRange  = 3.0
	highPerformerMin   = 7.0
	highPerformerRange = 2.0
	lowPerformerMin    = 1.0
	lowPerformerRange  = 3.0
	elitePerformerMin  = 9.0
	elitePerformerMax  = 10.0
	wideRangeMax       = 10.0
	maxScore           = 10.0

	// Scores move in quarter points.
	scoreStep = 0.25
	// Per-subject jitter around the candidate's level.
	subjectSpread = 1.5
	// Share of candidates who skip the foreign language paper.
	skipForeignLanguage = 0.08
)

type profile int

const (
	profileAverage profile = iota
	profileHigh
	profileLow
	profileElite
	profileWide
	profileCount
)

var (
	natural  = []score.Subject{score.Physics, score.Chemistry, score.Biology}
	social   = []score.Subject{score.History, score.Geography, score.CivicEducation}
	langCode = []string{"N1", "N2", "N3", "N4", "N5", "N6"}
)

// Config controls a generation run.
type Config struct {
	// Rows is the number of candidates to generate.
	Rows int
	// Seed makes runs reproducible. Equal seeds yield equal files.
	Seed uint64
	// Workers bounds generation concurrency. Defaults to GOMAXPROCS.
	Workers int
}

// Records generates cfg.Rows candidates. Row i depends only on (Seed, i).
func Records(ctx context.Context, cfg Config) ([]score.Record, error) {
	if cfg.Rows < 0 {
		return nil, fmt.Errorf("rows must not be negative: %d", cfg.Rows)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, max(cfg.Rows, 1))

	log := logger.Discard()
	if logger.Initialized() {
		log = logger.Named("sample")
	}
	log.Debug(ctx, "generating records", logger.Int("rows", cfg.Rows), logger.Int("workers", workers))

	out := make([]score.Record, cfg.Rows)
	per := (cfg.Rows + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < cfg.Rows; start += per {
		end := min(start+per, cfg.Rows)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out[i] = record(cfg.Seed, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("generate records: %w", err)
	}
	return out, nil
}

// WriteCSV generates cfg.Rows candidates and writes them in the import layout.
func WriteCSV(ctx context.Context, w io.Writer, cfg Config) error {
	recs, err := Records(ctx, cfg)
	if err != nil {
		return err
	}

	subjects := score.All()
	cw := csv.NewWriter(w)
	header := []string{"sbd"}
	for _, s := range subjects {
		header = append(header, s.Column())
	}
	header = append(header, "ma_ngoai_ngu")
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, rec := range recs {
		row[0] = rec.RegistrationNumber
		for i, s := range subjects {
			row[i+1] = ""
			if v, ok := rec.Score(s); ok {
				row[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		row[len(row)-1] = rec.ForeignLanguageCode
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// record builds candidate i. Every candidate sits math and literature plus
// either the natural or the social science block.
func record(seed uint64, i int) score.Record {
	rng := rand.New(rand.NewPCG(seed, uint64(i)))
	level := levelFor(rng)

	rec := score.Record{RegistrationNumber: fmt.Sprintf("%08d", FirstRegistration+i)}
	set := func(s score.Subject) {
		v := quantize(level + (rng.Float64()*2-1)*subjectSpread)
		rec.SetScore(s, &v)
	}

	set(score.Math)
	set(score.Literature)
	if rng.Float64() >= skipForeignLanguage {
		set(score.ForeignLanguage)
		rec.ForeignLanguageCode = langCode[rng.IntN(len(langCode))]
	}
	block := natural
	if rng.IntN(2) == 1 {
		block = social
	}
	for _, s := range block {
		set(s)
	}
	return rec
}

func levelFor(rng *rand.Rand) float64 {
	switch profile(rng.IntN(int(profileCount))) {
	case profileHigh:
		return highPerformerMin + rng.Float64()*highPerformerRange
	case profileLow:
		return lowPerformerMin + rng.Float64()*lowPerformerRange
	case profileElite:
		return elitePerformerMin + rng.Float64()*(elitePerformerMax-elitePerformerMin)
	case profileWide:
		return rng.Float64() * wideRangeMax
	default:
		return avgPerformerMin + rng.Float64()*avgPerformerRange
	}
}

// quantize clamps v into [0, 10] and snaps it to the score step.
func quantize(v float64) float64 {
	v = math.Round(v/scoreStep) * scoreStep
	return math.Max(0, math.Min(maxScore, v))
}
