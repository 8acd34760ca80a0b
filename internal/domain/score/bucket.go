package score

import "math"

// Bucket is a score-level classification.
type Bucket int

// Buckets in their fixed order.
const (
	Excellent Bucket = iota
	Good
	Average
	BelowAverage
)

// Buckets lists every bucket in order.
var Buckets = []Bucket{Excellent, Good, Average, BelowAverage}

type bucketInfo struct {
	key         string
	description string
	chartLabel  string
	background  string
	border      string
}

var bucketTable = [...]bucketInfo{
	Excellent:    {"excellent", "≥ 8.0 points", "Excellent (≥8)", "#10B981", "#059669"},
	Good:         {"good", "6.0 ≤ score < 8.0 points", "Good (6-8)", "#3B82F6", "#2563EB"},
	Average:      {"average", "4.0 ≤ score < 6.0 points", "Average (4-6)", "#F59E0B", "#D97706"},
	BelowAverage: {"below_average", "< 4.0 points", "Below Average (<4)", "#EF4444", "#DC2626"},
}

func (b Bucket) Key() string         { return bucketTable[b].key }
func (b Bucket) String() string      { return b.Key() }
func (b Bucket) Description() string { return bucketTable[b].description }
func (b Bucket) ChartLabel() string  { return bucketTable[b].chartLabel }
func (b Bucket) Background() string  { return bucketTable[b].background }
func (b Bucket) Border() string      { return bucketTable[b].border }

// Thresholds are the inclusive lower bounds of the upper three buckets.
// Excellent: s >= Excellent; Good: Good <= s < Excellent;
// Average: Average <= s < Good; BelowAverage: s < Average.
type Thresholds struct {
	Excellent float64
	Good      float64
	Average   float64
}

// Boundaries is the single bucket rule used by every aggregation backend.
var Boundaries = Thresholds{Excellent: 8.0, Good: 6.0, Average: 4.0}

// Classify returns the bucket for s.
func (t Thresholds) Classify(s float64) Bucket {
	switch {
	case s >= t.Excellent:
		return Excellent
	case s >= t.Good:
		return Good
	case s >= t.Average:
		return Average
	default:
		return BelowAverage
	}
}

// Classify classifies s with Boundaries.
func Classify(s float64) Bucket { return Boundaries.Classify(s) }

// LevelCounts tallies present scores per bucket.
type LevelCounts struct {
	Excellent    int `json:"excellent" msgpack:"excellent"`
	Good         int `json:"good" msgpack:"good"`
	Average      int `json:"average" msgpack:"average"`
	BelowAverage int `json:"below_average" msgpack:"below_average"`
	Total        int `json:"total_students" msgpack:"total_students"`
}

// Add counts one score in bucket b.
func (c *LevelCounts) Add(b Bucket) {
	switch b {
	case Excellent:
		c.Excellent++
	case Good:
		c.Good++
	case Average:
		c.Average++
	case BelowAverage:
		c.BelowAverage++
	}
	c.Total++
}

// Merge adds o into c.
func (c *LevelCounts) Merge(o LevelCounts) {
	c.Excellent += o.Excellent
	c.Good += o.Good
	c.Average += o.Average
	c.BelowAverage += o.BelowAverage
	c.Total += o.Total
}

// Get returns the count for b.
func (c LevelCounts) Get(b Bucket) int {
	switch b {
	case Excellent:
		return c.Excellent
	case Good:
		return c.Good
	case Average:
		return c.Average
	case BelowAverage:
		return c.BelowAverage
	}
	return 0
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percent returns part/total*100 rounded to 2dp, or 0 when total is 0.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round2(float64(part) / float64(total) * 100)
}
