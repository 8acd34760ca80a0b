package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/scorestat/internal/domain/score"
	"github.com/okian/scorestat/pkg/metrics"
)

const memoryBackend = "memory"

// MemoryStore is an in-memory Repository. Records are kept in insertion
// order; reads take the read lock and copy what they return.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]score.Record
	order []string
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]score.Record)}
}

func (s *MemoryStore) snapshot() []score.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]score.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// ListAll implements Repository.ListAll. fn runs without the lock held.
func (s *MemoryStore) ListAll(ctx context.Context, fn func(score.Record) error) error {
	defer observe(memoryBackend, "list_all", time.Now())
	for _, rec := range s.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// List implements Repository.List.
func (s *MemoryStore) List(_ context.Context, offset, limit int) ([]score.Record, error) {
	if offset < 0 || limit < 1 {
		return nil, fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidPageArg, offset, limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset >= len(s.order) {
		return []score.Record{}, nil
	}
	end := min(offset+limit, len(s.order))
	out := make([]score.Record, 0, end-offset)
	for _, id := range s.order[offset:end] {
		out = append(out, s.byID[id])
	}
	return out, nil
}

// Get implements Repository.Get.
func (s *MemoryStore) Get(_ context.Context, id string) (score.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return score.Record{}, ErrNotFound
	}
	return rec, nil
}

// Create implements Repository.Create.
func (s *MemoryStore) Create(_ context.Context, rec score.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	s.mu.Lock()
	if _, ok := s.byID[rec.RegistrationNumber]; ok {
		s.mu.Unlock()
		return ErrAlreadyExists
	}
	s.insertLocked(rec)
	n := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateRepositoryRecords(n)
	return nil
}

// Update implements Repository.Update.
func (s *MemoryStore) Update(_ context.Context, rec score.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.RegistrationNumber]; !ok {
		return ErrNotFound
	}
	s.byID[rec.RegistrationNumber] = rec
	return nil
}

// Delete implements Repository.Delete.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.byID, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	n := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateRepositoryRecords(n)
	return nil
}

// Count implements Repository.Count.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// DeleteAll implements Repository.DeleteAll.
func (s *MemoryStore) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	n := len(s.byID)
	s.byID = make(map[string]score.Record)
	s.order = nil
	s.mu.Unlock()

	metrics.UpdateRepositoryRecords(0)
	return n, nil
}

func (s *MemoryStore) insertLocked(rec score.Record) {
	s.byID[rec.RegistrationNumber] = rec
	s.order = append(s.order, rec.RegistrationNumber)
}

// BulkUpsert implements Repository.BulkUpsert. The whole batch is applied
// under the write lock, so readers never see half of it.
func (s *MemoryStore) BulkUpsert(ctx context.Context, rows []score.Record) (UpsertCounts, error) {
	defer observe(memoryBackend, "bulk_upsert", time.Now())
	if err := ctx.Err(); err != nil {
		return UpsertCounts{}, err
	}
	for _, r := range rows {
		if err := r.Validate(); err != nil {
			return UpsertCounts{}, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
	}

	s.mu.Lock()
	var counts UpsertCounts
	toInsert := make([]score.Record, 0, len(rows))
	toUpdate := make([]score.Record, 0, len(rows))
	for _, r := range rows {
		if _, ok := s.byID[r.RegistrationNumber]; ok {
			toUpdate = append(toUpdate, r)
		} else {
			toInsert = append(toInsert, r)
		}
	}
	for _, r := range toInsert {
		if _, dup := s.byID[r.RegistrationNumber]; dup {
			continue
		}
		s.insertLocked(r)
	}
	for _, r := range toUpdate {
		s.byID[r.RegistrationNumber] = r
	}
	counts.Created = len(toInsert)
	counts.Updated = len(toUpdate)
	n := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateRepositoryRecords(n)
	return counts, nil
}

// AggregateBucketCounts implements Repository.AggregateBucketCounts.
func (s *MemoryStore) AggregateBucketCounts(_ context.Context, subject score.Subject, t score.Thresholds) (score.LevelCounts, error) {
	defer observe(memoryBackend, "bucket_counts", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c score.LevelCounts
	for _, id := range s.order {
		if v, ok := s.byID[id].Score(subject); ok {
			c.Add(t.Classify(v))
		}
	}
	return c, nil
}

// ScoresForSubject implements Repository.ScoresForSubject.
func (s *MemoryStore) ScoresForSubject(_ context.Context, subject score.Subject) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, 0, len(s.order))
	for _, id := range s.order {
		if v, ok := s.byID[id].Score(subject); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// GroupTotals implements Repository.GroupTotals.
func (s *MemoryStore) GroupTotals(_ context.Context, subjects []score.Subject, minPresent int) ([]GroupTotal, error) {
	defer observe(memoryBackend, "group_totals", time.Now())
	minPresent = max(minPresent, 1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []GroupTotal
	for _, id := range s.order {
		rec := s.byID[id]
		g := GroupTotal{
			RegistrationNumber:  rec.RegistrationNumber,
			ForeignLanguageCode: rec.ForeignLanguageCode,
			Scores:              make(map[score.Subject]float64, len(subjects)),
		}
		for _, sub := range subjects {
			if v, ok := rec.Score(sub); ok {
				g.Scores[sub] = v
				g.Sum += v
				g.Count++
			}
		}
		if g.Count >= minPresent {
			out = append(out, g)
		}
	}
	return out, nil
}

// SubjectAverages implements Repository.SubjectAverages.
func (s *MemoryStore) SubjectAverages(_ context.Context) (Averages, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := make(map[score.Subject]float64)
	counts := make(map[score.Subject]int)
	for _, id := range s.order {
		rec := s.byID[id]
		for _, sub := range score.All() {
			if v, ok := rec.Score(sub); ok {
				sums[sub] += v
				counts[sub]++
			}
		}
	}
	avg := Averages{Records: len(s.byID), Mean: make(map[score.Subject]float64, len(sums))}
	for sub, sum := range sums {
		avg.Mean[sub] = sum / float64(counts[sub])
	}
	return avg, nil
}

// Close implements Repository.Close.
func (s *MemoryStore) Close() error { return nil }
