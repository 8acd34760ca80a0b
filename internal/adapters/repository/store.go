// Package repository defines the score store contract and its backends.
package repository

import (
	"context"

	"github.com/okian/scorestat/internal/domain/score"
)

// UpsertCounts reports what a BulkUpsert did.
type UpsertCounts struct {
	Created int
	Updated int
}

// GroupTotal is one candidate's pushed-down sum over a subject group.
type GroupTotal struct {
	RegistrationNumber  string
	ForeignLanguageCode string
	Scores              map[score.Subject]float64
	Sum                 float64
	Count               int
}

// Averages holds the per-subject mean of present scores and the record count.
// Subjects without any present score are missing from Mean.
type Averages struct {
	Records int
	Mean    map[score.Subject]float64
}

// Repository provides read/write access to score records.
type Repository interface {
	// ListAll calls fn for every record in insertion order. It stops at the
	// first error returned by fn and can be called again to restart.
	ListAll(ctx context.Context, fn func(score.Record) error) error
	// List returns a page of records in insertion order.
	List(ctx context.Context, offset, limit int) ([]score.Record, error)
	// Get returns ErrNotFound when id is unknown.
	Get(ctx context.Context, id string) (score.Record, error)
	// Create returns ErrAlreadyExists when the id is taken.
	Create(ctx context.Context, rec score.Record) error
	// Update overwrites every field of an existing record.
	Update(ctx context.Context, rec score.Record) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	// DeleteAll removes every record and returns how many were removed.
	DeleteAll(ctx context.Context) (int, error)

	// BulkUpsert partitions rows into inserts and updates against the
	// existing identities and applies both in one transaction. Duplicate new
	// identities inside rows keep the first occurrence; duplicate updates keep
	// the last.
	BulkUpsert(ctx context.Context, rows []score.Record) (UpsertCounts, error)

	// AggregateBucketCounts counts present scores of subject per bucket.
	AggregateBucketCounts(ctx context.Context, subject score.Subject, t score.Thresholds) (score.LevelCounts, error)
	// ScoresForSubject returns every present score of subject.
	ScoresForSubject(ctx context.Context, subject score.Subject) ([]float64, error)
	// GroupTotals returns sum and count over subjects for every record with at
	// least max(minPresent, 1) of them present, in insertion order.
	GroupTotals(ctx context.Context, subjects []score.Subject, minPresent int) ([]GroupTotal, error)
	// SubjectAverages returns the per-subject means and the record count.
	SubjectAverages(ctx context.Context) (Averages, error)

	Close() error
}
