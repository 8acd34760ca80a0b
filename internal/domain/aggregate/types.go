package aggregate

import "github.com/okian/scorestat/internal/domain/score"

// Distribution is a bucket tally without the total.
type Distribution struct {
	Excellent    int `json:"excellent"`
	Good         int `json:"good"`
	Average      int `json:"average"`
	BelowAverage int `json:"below_average"`
}

// Percentages are bucket shares rounded to two decimals.
type Percentages struct {
	Excellent    float64 `json:"excellent"`
	Good         float64 `json:"good"`
	Average      float64 `json:"average"`
	BelowAverage float64 `json:"below_average"`
}

func distributionOf(c score.LevelCounts) Distribution {
	return Distribution{Excellent: c.Excellent, Good: c.Good, Average: c.Average, BelowAverage: c.BelowAverage}
}

func percentagesOf(c score.LevelCounts) Percentages {
	return Percentages{
		Excellent:    score.Percent(c.Excellent, c.Total),
		Good:         score.Percent(c.Good, c.Total),
		Average:      score.Percent(c.Average, c.Total),
		BelowAverage: score.Percent(c.BelowAverage, c.Total),
	}
}

// ScoreLevels describes each bucket's range.
type ScoreLevels struct {
	Excellent    string `json:"excellent"`
	Good         string `json:"good"`
	Average      string `json:"average"`
	BelowAverage string `json:"below_average"`
}

// Levels is the fixed bucket description block.
var Levels = ScoreLevels{
	Excellent:    score.Excellent.Description(),
	Good:         score.Good.Description(),
	Average:      score.Average.Description(),
	BelowAverage: score.BelowAverage.Description(),
}

// SubjectStats is one subject line of a Report.
type SubjectStats struct {
	Subject     string            `json:"subject"`
	SubjectName string            `json:"subject_name"`
	Statistics  score.LevelCounts `json:"statistics"`
}

// Summary covers every subject of a Report.
type Summary struct {
	// TotalScoresAnalyzed counts a candidate once per subject sat.
	TotalScoresAnalyzed int          `json:"total_scores_analyzed"`
	OverallDistribution Distribution `json:"overall_distribution"`
	Percentages         Percentages  `json:"percentages"`
}

// Report is the per-subject score-level report.
type Report struct {
	Subjects    []SubjectStats `json:"subjects"`
	Summary     Summary        `json:"summary"`
	ScoreLevels ScoreLevels    `json:"score_levels"`
}

// DetailStats are descriptive statistics of one subject.
type DetailStats struct {
	AverageScore float64 `json:"average_score"`
	HighestScore float64 `json:"highest_score"`
	LowestScore  float64 `json:"lowest_score"`
}

// SubjectDetail is the drill-down for one subject.
type SubjectDetail struct {
	Subject           string       `json:"subject"`
	SubjectName       string       `json:"subject_name"`
	TotalStudents     int          `json:"total_students"`
	ScoreDistribution Distribution `json:"score_distribution"`
	Percentages       Percentages  `json:"percentages"`
	Statistics        DetailStats  `json:"statistics"`
}

// ChartDataset is one bucket series aligned with ChartData.Labels.
type ChartDataset struct {
	Label           string `json:"label"`
	Data            []int  `json:"data"`
	BackgroundColor string `json:"backgroundColor"`
	BorderColor     string `json:"borderColor"`
	BorderWidth     int    `json:"borderWidth"`
}

// ChartData holds the subject labels and one dataset per bucket.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartMetadata describes a Chart.
type ChartMetadata struct {
	TotalSubjects int    `json:"total_subjects"`
	ScoreLevels   int    `json:"score_levels"`
	GeneratedAt   string `json:"generated_at"`
}

// Chart is bucket counts reshaped for a grouped bar chart.
type Chart struct {
	Data     ChartData     `json:"chartData"`
	Metadata ChartMetadata `json:"metadata"`
}

// Dashboard is the landing page summary.
type Dashboard struct {
	TotalStudents           int                `json:"total_students"`
	OverallAverageScore     float64            `json:"overall_average_score"`
	AverageScoresPerSubject map[string]float64 `json:"average_scores_per_subject"`
	ScoreDistribution       Distribution       `json:"score_distribution"`
	GeneratedAt             string             `json:"generated_at"`
}
