package repository

import (
	"time"

	"github.com/okian/scorestat/pkg/metrics"
)

const defaultChunkSize = 500

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithChunkSize bounds the number of rows bound into one multi-row statement.
func WithChunkSize(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func observe(backend, op string, start time.Time) {
	metrics.RecordRepositoryLatency(backend, op, float64(time.Since(start).Microseconds())/1000)
}
