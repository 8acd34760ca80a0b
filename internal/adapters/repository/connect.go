package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const tableName = "student_scores"

// dialect captures the few places sqlite and postgres differ.
type dialect struct {
	name string
	// orderCol follows insertion order.
	orderCol string
}

func (d dialect) ph(n int) string {
	if d.name == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// placeholders returns "(p1,p2,...)" for n values starting at position from.
func (d dialect) placeholders(from, n int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(d.ph(from + i))
	}
	b.WriteByte(')')
	return b.String()
}

func dialectFor(driver string) (dialect, string, error) {
	switch driver {
	case DriverSQLite:
		return dialect{name: DriverSQLite, orderCol: "rowid"}, "sqlite", nil
	case DriverPostgres:
		return dialect{name: DriverPostgres, orderCol: "seq"}, "pgx", nil
	default:
		return dialect{}, "", fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

// Open opens a database, pings it and ensures the schema exists.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	d, drvName, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		switch driver {
		case DriverSQLite:
			dsn = "file:scorestat.db?_pragma=busy_timeout(5000)"
		case DriverPostgres:
			dsn = "postgres://localhost:5432/scorestat?sslmode=disable"
		}
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if d.name == DriverSQLite {
		// One writer at a time; also keeps in-memory databases on a single connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := ensureSchema(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, d dialect) error {
	stmts := schemaSQLite
	if d.name == DriverPostgres {
		stmts = schemaPostgres
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var schemaSQLite = []string{
	`CREATE TABLE IF NOT EXISTS student_scores (
  sbd TEXT PRIMARY KEY,
  math REAL,
  literature REAL,
  foreign_language REAL,
  physics REAL,
  chemistry REAL,
  biology REAL,
  history REAL,
  geography REAL,
  civic_education REAL,
  foreign_language_code TEXT NOT NULL DEFAULT ''
)`,
}

var schemaPostgres = []string{
	`CREATE TABLE IF NOT EXISTS student_scores (
  seq BIGSERIAL,
  sbd TEXT PRIMARY KEY,
  math DOUBLE PRECISION,
  literature DOUBLE PRECISION,
  foreign_language DOUBLE PRECISION,
  physics DOUBLE PRECISION,
  chemistry DOUBLE PRECISION,
  biology DOUBLE PRECISION,
  history DOUBLE PRECISION,
  geography DOUBLE PRECISION,
  civic_education DOUBLE PRECISION,
  foreign_language_code TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS student_scores_seq_idx ON student_scores (seq)`,
}
