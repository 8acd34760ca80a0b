package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/pkg/metrics"
)

const listAllPage = 1000

// SQLStore is a Repository over database/sql (sqlite or postgres).
type SQLStore struct {
	db        *sql.DB
	d         dialect
	chunkSize int
}

// NewSQLStore wraps an open database. driver is DriverSQLite or DriverPostgres.
func NewSQLStore(db *sql.DB, driver string, opts ...Option) (*SQLStore, error) {
	d, _, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	s := &SQLStore{db: db, d: d, chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// recordColumns is the column order used by every read and write.
var recordColumns = func() []string {
	cols := []string{"sbd"}
	for _, sub := range score.All() {
		cols = append(cols, sub.SQLColumn())
	}
	return append(cols, "foreign_language_code")
}()

var selectColumns = strings.Join(recordColumns, ", ")

func recordArgs(rec score.Record) []any {
	args := make([]any, 0, len(recordColumns))
	args = append(args, rec.RegistrationNumber)
	for _, sub := range score.All() {
		if v, ok := rec.Score(sub); ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	return append(args, rec.ForeignLanguageCode)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, extra ...any) (score.Record, error) {
	var (
		rec  score.Record
		vals = make([]sql.NullFloat64, len(recordColumns)-2)
	)
	dest := make([]any, 0, len(recordColumns)+len(extra))
	dest = append(dest, extra...)
	dest = append(dest, &rec.RegistrationNumber)
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	dest = append(dest, &rec.ForeignLanguageCode)
	if err := row.Scan(dest...); err != nil {
		return score.Record{}, err
	}
	for i, sub := range score.All() {
		if vals[i].Valid {
			rec.SetScore(sub, &vals[i].Float64)
		}
	}
	return rec, nil
}

func (s *SQLStore) backend() string { return s.d.name }

// ListAll implements Repository.ListAll. Records are fetched in keyset pages
// so fn never runs while a cursor holds a connection.
func (s *SQLStore) ListAll(ctx context.Context, fn func(score.Record) error) error {
	defer observe(s.backend(), "list_all", time.Now())
	q := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s > %s ORDER BY %s LIMIT %d",
		s.d.orderCol, selectColumns, tableName, s.d.orderCol, s.d.ph(1), s.d.orderCol, listAllPage)

	var after int64
	for {
		page, last, err := s.listPage(ctx, q, after)
		if err != nil {
			return err
		}
		for _, rec := range page {
			if err := fn(rec); err != nil {
				return err
			}
		}
		if len(page) < listAllPage {
			return nil
		}
		after = last
	}
}

func (s *SQLStore) listPage(ctx context.Context, q string, after int64) ([]score.Record, int64, error) {
	rows, err := s.db.QueryContext(ctx, q, after)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		out  []score.Record
		last int64
	)
	for rows.Next() {
		rec, err := scanRecord(rows, &last)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, last, rows.Err()
}

// List implements Repository.List.
func (s *SQLStore) List(ctx context.Context, offset, limit int) ([]score.Record, error) {
	if offset < 0 || limit < 1 {
		return nil, fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidPageArg, offset, limit)
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %s OFFSET %s",
		selectColumns, tableName, s.d.orderCol, s.d.ph(1), s.d.ph(2))
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []score.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get implements Repository.Get.
func (s *SQLStore) Get(ctx context.Context, id string) (score.Record, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE sbd = %s", selectColumns, tableName, s.d.ph(1))
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return score.Record{}, ErrNotFound
	}
	if err != nil {
		return score.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Create implements Repository.Create.
func (s *SQLStore) Create(ctx context.Context, rec score.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (sbd) DO NOTHING",
		tableName, selectColumns, s.d.placeholders(1, len(recordColumns)))
	res, err := s.db.ExecContext(ctx, q, recordArgs(rec)...)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Update implements Repository.Update.
func (s *SQLStore) Update(ctx context.Context, rec score.Record) error {
	sets := make([]string, 0, len(recordColumns)-1)
	for i, col := range recordColumns[1:] {
		sets = append(sets, fmt.Sprintf("%s = %s", col, s.d.ph(i+1)))
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE sbd = %s",
		tableName, strings.Join(sets, ", "), s.d.ph(len(recordColumns)))

	args := recordArgs(rec)
	args = append(args[1:], rec.RegistrationNumber)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return requireAffected(res)
}

// Delete implements Repository.Delete.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE sbd = %s", tableName, s.d.ph(1))
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count implements Repository.Count.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableName).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	metrics.UpdateRepositoryRecords(n)
	return n, nil
}

// DeleteAll implements Repository.DeleteAll.
func (s *SQLStore) DeleteAll(ctx context.Context) (int, error) {
	defer observe(s.backend(), "delete_all", time.Now())
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+tableName)
	if err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	metrics.UpdateRepositoryRecords(0)
	return int(n), nil
}

// BulkUpsert implements Repository.BulkUpsert.
func (s *SQLStore) BulkUpsert(ctx context.Context, rows []score.Record) (counts UpsertCounts, err error) {
	defer observe(s.backend(), "bulk_upsert", time.Now())
	if len(rows) == 0 {
		return UpsertCounts{}, nil
	}
	for _, r := range rows {
		if err := r.Validate(); err != nil {
			return UpsertCounts{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertCounts{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, err := s.existingIDs(ctx, tx, rows)
	if err != nil {
		return UpsertCounts{}, err
	}

	toInsert := make([]score.Record, 0, len(rows))
	toUpdate := make([]score.Record, 0, len(rows))
	for _, r := range rows {
		if _, ok := existing[r.RegistrationNumber]; ok {
			toUpdate = append(toUpdate, r)
		} else {
			toInsert = append(toInsert, r)
		}
	}

	if err = s.writeRows(ctx, tx, toInsert, "DO NOTHING"); err != nil {
		return UpsertCounts{}, fmt.Errorf("bulk insert: %w", err)
	}
	if err = s.writeRows(ctx, tx, lastByID(toUpdate), s.updateClause()); err != nil {
		return UpsertCounts{}, fmt.Errorf("bulk update: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return UpsertCounts{}, fmt.Errorf("commit: %w", err)
	}
	return UpsertCounts{Created: len(toInsert), Updated: len(toUpdate)}, nil
}

func (s *SQLStore) existingIDs(ctx context.Context, tx *sql.Tx, rows []score.Record) (map[string]struct{}, error) {
	ids := make([]any, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.RegistrationNumber]; ok {
			continue
		}
		seen[r.RegistrationNumber] = struct{}{}
		ids = append(ids, r.RegistrationNumber)
	}

	existing := make(map[string]struct{}, len(ids))
	for start := 0; start < len(ids); start += s.chunkSize {
		chunk := ids[start:min(start+s.chunkSize, len(ids))]
		q := fmt.Sprintf("SELECT sbd FROM %s WHERE sbd IN %s", tableName, s.d.placeholders(1, len(chunk)))
		if err := func() error {
			res, err := tx.QueryContext(ctx, q, chunk...)
			if err != nil {
				return err
			}
			defer func() { _ = res.Close() }()
			for res.Next() {
				var id string
				if err := res.Scan(&id); err != nil {
					return err
				}
				existing[id] = struct{}{}
			}
			return res.Err()
		}(); err != nil {
			return nil, fmt.Errorf("lookup existing: %w", err)
		}
	}
	return existing, nil
}

func (s *SQLStore) updateClause() string {
	sets := make([]string, 0, len(recordColumns)-1)
	for _, col := range recordColumns[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return "DO UPDATE SET " + strings.Join(sets, ", ")
}

// writeRows runs multi-row INSERT ... ON CONFLICT (sbd) <action> in chunks.
func (s *SQLStore) writeRows(ctx context.Context, tx *sql.Tx, rows []score.Record, action string) error {
	width := len(recordColumns)
	for start := 0; start < len(rows); start += s.chunkSize {
		chunk := rows[start:min(start+s.chunkSize, len(rows))]
		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*width)
		for i, r := range chunk {
			values[i] = s.d.placeholders(i*width+1, width)
			args = append(args, recordArgs(r)...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (sbd) %s",
			tableName, selectColumns, strings.Join(values, ", "), action)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

// lastByID keeps the last occurrence of every identity, in first-seen order.
func lastByID(rows []score.Record) []score.Record {
	pos := make(map[string]int, len(rows))
	out := make([]score.Record, 0, len(rows))
	for _, r := range rows {
		if i, ok := pos[r.RegistrationNumber]; ok {
			out[i] = r
			continue
		}
		pos[r.RegistrationNumber] = len(out)
		out = append(out, r)
	}
	return out
}

// AggregateBucketCounts implements Repository.AggregateBucketCounts with
// conditional counts evaluated by the database.
func (s *SQLStore) AggregateBucketCounts(ctx context.Context, subject score.Subject, t score.Thresholds) (score.LevelCounts, error) {
	defer observe(s.backend(), "bucket_counts", time.Now())
	if !subject.Valid() {
		return score.LevelCounts{}, &score.ValidationError{Field: "subject", Value: subject.Key(), Reason: "unknown subject"}
	}
	col := subject.SQLColumn()
	p := s.d.ph
	q := fmt.Sprintf(`SELECT
  COUNT(CASE WHEN %[1]s >= %[2]s THEN 1 END),
  COUNT(CASE WHEN %[1]s >= %[3]s AND %[1]s < %[4]s THEN 1 END),
  COUNT(CASE WHEN %[1]s >= %[5]s AND %[1]s < %[6]s THEN 1 END),
  COUNT(CASE WHEN %[1]s < %[7]s THEN 1 END),
  COUNT(%[1]s)
FROM %[8]s`, col, p(1), p(2), p(3), p(4), p(5), p(6), tableName)

	var c score.LevelCounts
	err := s.db.QueryRowContext(ctx, q,
		t.Excellent,
		t.Good, t.Excellent,
		t.Average, t.Good,
		t.Average,
	).Scan(&c.Excellent, &c.Good, &c.Average, &c.BelowAverage, &c.Total)
	if err != nil {
		return score.LevelCounts{}, fmt.Errorf("bucket counts %s: %w", subject, err)
	}
	return c, nil
}

// ScoresForSubject implements Repository.ScoresForSubject.
func (s *SQLStore) ScoresForSubject(ctx context.Context, subject score.Subject) ([]float64, error) {
	if !subject.Valid() {
		return nil, &score.ValidationError{Field: "subject", Value: subject.Key(), Reason: "unknown subject"}
	}
	col := subject.SQLColumn()
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s", col, tableName, col, s.d.orderCol)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("scores for %s: %w", subject, err)
	}
	defer func() { _ = rows.Close() }()

	out := []float64{}
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GroupTotals implements Repository.GroupTotals. Sum and count are computed
// by the database; absent subjects contribute nothing.
func (s *SQLStore) GroupTotals(ctx context.Context, subjects []score.Subject, minPresent int) ([]GroupTotal, error) {
	defer observe(s.backend(), "group_totals", time.Now())
	if len(subjects) == 0 {
		return nil, nil
	}
	cols := make([]string, len(subjects))
	sums := make([]string, len(subjects))
	cnts := make([]string, len(subjects))
	for i, sub := range subjects {
		if !sub.Valid() {
			return nil, &score.ValidationError{Field: "subject", Value: sub.Key(), Reason: "unknown subject"}
		}
		c := sub.SQLColumn()
		cols[i] = c
		sums[i] = fmt.Sprintf("COALESCE(%s, 0)", c)
		cnts[i] = fmt.Sprintf("(CASE WHEN %s IS NOT NULL THEN 1 ELSE 0 END)", c)
	}
	countExpr := strings.Join(cnts, " + ")
	q := fmt.Sprintf("SELECT sbd, foreign_language_code, %s, %s, %s FROM %s WHERE %s >= %s ORDER BY %s",
		strings.Join(cols, ", "), strings.Join(sums, " + "), countExpr,
		tableName, countExpr, s.d.ph(1), s.d.orderCol)

	rows, err := s.db.QueryContext(ctx, q, max(minPresent, 1))
	if err != nil {
		return nil, fmt.Errorf("group totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []GroupTotal
	for rows.Next() {
		var (
			g    GroupTotal
			vals = make([]sql.NullFloat64, len(subjects))
		)
		dest := []any{&g.RegistrationNumber, &g.ForeignLanguageCode}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		dest = append(dest, &g.Sum, &g.Count)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan group total: %w", err)
		}
		g.Scores = make(map[score.Subject]float64, len(subjects))
		for i, sub := range subjects {
			if vals[i].Valid {
				g.Scores[sub] = vals[i].Float64
			}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SubjectAverages implements Repository.SubjectAverages.
func (s *SQLStore) SubjectAverages(ctx context.Context) (Averages, error) {
	subjects := score.All()
	avgs := make([]string, len(subjects))
	for i, sub := range subjects {
		avgs[i] = fmt.Sprintf("AVG(%s)", sub.SQLColumn())
	}
	q := fmt.Sprintf("SELECT COUNT(*), %s FROM %s", strings.Join(avgs, ", "), tableName)

	var (
		res  = Averages{Mean: make(map[score.Subject]float64, len(subjects))}
		vals = make([]sql.NullFloat64, len(subjects))
	)
	dest := []any{&res.Records}
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := s.db.QueryRowContext(ctx, q).Scan(dest...); err != nil {
		return Averages{}, fmt.Errorf("subject averages: %w", err)
	}
	for i, sub := range subjects {
		if vals[i].Valid {
			res.Mean[sub] = vals[i].Float64
		}
	}
	return res, nil
}

// Close implements Repository.Close.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
