// Package ingest loads exam score CSV files into a score repository in
// batched, transactional flushes.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scorestat/internal/adapters/repository"
	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/pkg/logger"
	"github.com/okian/scorestat/pkg/metrics"
)

const (
	DefaultBatchSize     = 1000
	DefaultProgressEvery = 100
)

// Store is the part of the repository the pipeline writes through.
type Store interface {
	BulkUpsert(ctx context.Context, rows []score.Record) (repository.UpsertCounts, error)
	DeleteAll(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

// Options control a single import run.
type Options struct {
	// Truncate deletes every record before importing. Ignored in dry-run mode.
	Truncate bool
	// BatchSize is the number of rows per flush. Must be positive.
	BatchSize int
	// DryRun validates and counts rows without writing.
	DryRun bool
	// ProgressEvery fires the progress callback every N rows. Defaults to 100.
	ProgressEvery int
}

// Result aggregates the counters of one import run.
type Result struct {
	RunID    string `json:"run_id"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Errors   int    `json:"errors"`
	Deleted  int    `json:"deleted"`
	Rows     int    `json:"rows"`
	Flushes  int    `json:"flushes"`
	DryRun   bool   `json:"dry_run"`
	Encoding string `json:"encoding"`
}

// Progress is a snapshot of the running totals.
type Progress struct {
	RunID   string
	Rows    int
	Created int
	Updated int
	Errors  int
}

// Pipeline imports CSV sources into a Store.
type Pipeline struct {
	store    Store
	log      logger.Logger
	progress func(Progress)
	after    []func(context.Context, Result)
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithProgress registers a callback fired every Options.ProgressEvery rows.
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithAfterImport registers a hook run after every import that wrote data.
func WithAfterImport(fn func(context.Context, Result)) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.after = append(p.after, fn)
		}
	}
}

// New constructs a pipeline over store.
func New(store Store, opts ...Option) *Pipeline {
	p := &Pipeline{store: store, now: time.Now}
	if logger.Initialized() {
		p.log = logger.Named("ingest")
	} else {
		p.log = logger.Discard()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run holds the mutable state of one import.
type run struct {
	p     *Pipeline
	opts  Options
	log   logger.Logger
	res   Result
	batch []score.Record
}

// Import reads the CSV at path and upserts its rows.
//
// An InputError is returned before anything is written when the file cannot
// be read or has no sbd column. Row and flush failures are counted in
// Result.Errors and do not stop the run.
func (p *Pipeline) Import(ctx context.Context, path string, opts Options) (Result, error) {
	if opts.BatchSize <= 0 {
		return Result{}, &InputError{Source: path, Err: fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)}
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}

	src, err := openSource(path)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = src.Close() }()

	r := &run{
		p:    p,
		opts: opts,
		res:  Result{RunID: uuid.NewString(), DryRun: opts.DryRun, Encoding: src.encoding},
	}
	r.log = p.log.With(logger.String("run_id", r.res.RunID))
	start := p.now()

	reader := csv.NewReader(src.r)
	reader.ReuseRecord = true
	// Short rows leave trailing columns absent; extra cells are ignored.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, &InputError{Source: path, Err: errors.New("empty file")}
	}
	if err != nil {
		return Result{}, &InputError{Source: path, Err: fmt.Errorf("read header: %w", err)}
	}
	cols, ok := newLayout(header)
	if !ok {
		return Result{}, &InputError{Source: path, Err: fmt.Errorf("missing required column %q", identityColumn)}
	}
	if src.encoding != EncodingUTF8 {
		r.log.Warn(ctx, "invalid UTF-8 in source, decoding with replacement", logger.String("source", path))
	}
	if opts.DryRun {
		r.log.Warn(ctx, "dry run, nothing will be written")
	}

	if opts.Truncate && !opts.DryRun {
		n, err := p.store.DeleteAll(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("truncate: %w", err)
		}
		r.res.Deleted = n
		r.log.Info(ctx, "deleted existing records", logger.Int("deleted", n))
	}

	r.log.Info(ctx, "import started", logger.String("source", path), logger.Int("batch_size", opts.BatchSize))
	r.batch = make([]score.Record, 0, opts.BatchSize)

	for {
		if err := ctx.Err(); err != nil {
			r.abort(ctx, err)
			return r.res, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		r.res.Rows++

		var perr *csv.ParseError
		switch {
		case errors.As(err, &perr):
			r.rowError(ctx, &RowError{Line: perr.StartLine, Err: perr.Err})
		case err != nil:
			return r.res, &InputError{Source: path, Err: err}
		default:
			line, _ := reader.FieldPos(0)
			r.handleRow(ctx, cols, line, row)
		}

		if r.res.Rows%opts.ProgressEvery == 0 {
			r.reportProgress(ctx)
		}
	}
	r.flush(ctx)
	r.finish(ctx, start)
	return r.res, nil
}

func (r *run) handleRow(ctx context.Context, cols layout, line int, row []string) {
	rec, err := cols.clean(row)
	if err != nil {
		r.rowError(ctx, &RowError{Line: line, Err: err})
		return
	}
	if r.opts.DryRun {
		r.res.Created++
		metrics.RecordImportRows(metrics.OutcomeDryRun, 1)
		return
	}
	r.batch = append(r.batch, rec)
	if len(r.batch) >= r.opts.BatchSize {
		r.flush(ctx)
	}
}

func (r *run) rowError(ctx context.Context, err *RowError) {
	r.res.Errors++
	metrics.RecordImportRows(metrics.OutcomeError, 1)
	r.log.Warn(ctx, "skipping row", logger.Int("line", err.Line), logger.Error(err.Err))
}

// flush writes the pending batch in one repository call. A failed flush
// counts all of its rows as errors; earlier flushes stay committed.
func (r *run) flush(ctx context.Context) {
	if len(r.batch) == 0 {
		return
	}
	size := len(r.batch)
	start := time.Now()
	counts, err := r.p.store.BulkUpsert(ctx, r.batch)
	latency := float64(time.Since(start).Microseconds()) / 1000
	r.batch = r.batch[:0]
	r.res.Flushes++

	if err != nil {
		ferr := &FlushError{Size: size, Err: err}
		r.res.Errors += size
		metrics.RecordFlush(metrics.FlushFailed, latency)
		metrics.RecordImportRows(metrics.OutcomeError, size)
		r.log.Error(ctx, "batch flush failed", logger.Int("rows", size), logger.Error(ferr))
		return
	}

	r.res.Created += counts.Created
	r.res.Updated += counts.Updated
	metrics.RecordFlush(metrics.FlushCommitted, latency)
	metrics.RecordImportRows(metrics.OutcomeCreated, counts.Created)
	metrics.RecordImportRows(metrics.OutcomeUpdated, counts.Updated)
	r.log.Debug(ctx, "batch flushed",
		logger.Int("rows", size),
		logger.Int("created", counts.Created),
		logger.Int("updated", counts.Updated),
		logger.Float64("latency_ms", latency))
}

func (r *run) reportProgress(ctx context.Context) {
	pr := Progress{
		RunID:   r.res.RunID,
		Rows:    r.res.Rows,
		Created: r.res.Created,
		Updated: r.res.Updated,
		Errors:  r.res.Errors,
	}
	if r.p.progress != nil {
		r.p.progress(pr)
	}
	r.log.Info(ctx, "import progress",
		logger.Int("rows", pr.Rows),
		logger.Int("created", pr.Created),
		logger.Int("updated", pr.Updated),
		logger.Int("errors", pr.Errors))
}

// abort ends a cancelled run. The pending batch is dropped, but flushes that
// already committed still reach the AfterImport hooks.
func (r *run) abort(ctx context.Context, cause error) {
	r.log.Warn(ctx, "import cancelled",
		logger.Int("rows", r.res.Rows),
		logger.Int("pending", len(r.batch)),
		logger.Int("flushes", r.res.Flushes),
		logger.Error(cause))
	if r.opts.DryRun || r.res.Flushes == 0 {
		return
	}
	metrics.RecordImportRun("cancelled")
	r.runHooks(context.WithoutCancel(ctx))
}

func (r *run) runHooks(ctx context.Context) {
	for _, fn := range r.p.after {
		fn(ctx, r.res)
	}
}

func (r *run) finish(ctx context.Context, start time.Time) {
	fields := []logger.Field{
		logger.Int("rows", r.res.Rows),
		logger.Int("created", r.res.Created),
		logger.Int("updated", r.res.Updated),
		logger.Int("errors", r.res.Errors),
		logger.Duration("elapsed", r.p.now().Sub(start)),
	}
	if r.opts.DryRun {
		metrics.RecordImportRun("dry_run")
		r.log.Info(ctx, "dry run completed", fields...)
		return
	}
	metrics.RecordImportRun("write")

	if total, err := r.p.store.Count(ctx); err == nil {
		fields = append(fields, logger.Int("total_records", total))
	} else {
		r.log.Warn(ctx, "count after import failed", logger.Error(err))
	}
	r.log.Info(ctx, "import completed", fields...)
	r.runHooks(ctx)
}
