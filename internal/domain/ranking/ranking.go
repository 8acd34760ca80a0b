// Package ranking orders candidates by their composite score over the group A
// subjects.
package ranking

import "context"

const (
	DefaultLimit       = 10
	MaxLimit           = 50
	DefaultMinSubjects = 2

	rankingMethod = "Total score in Group A subjects"
)

// Ranker computes a group A ranking.
type Ranker interface {
	RankGroupA(ctx context.Context, limit, minSubjects int) (Result, error)
}

// Entry is one ranked candidate.
type Entry struct {
	RegistrationNumber  string             `json:"registration_number" msgpack:"registration_number"`
	SubjectScores       map[string]float64 `json:"subject_scores" msgpack:"subject_scores"`
	TotalScore          float64            `json:"total_score" msgpack:"total_score"`
	AverageScore        float64            `json:"average_score" msgpack:"average_score"`
	SubjectsCount       int                `json:"subjects_count" msgpack:"subjects_count"`
	ForeignLanguageCode string             `json:"foreign_language_code" msgpack:"foreign_language_code"`
	Rank                int                `json:"rank" msgpack:"rank"`
}

// Stats summarize the totals of a set of entries.
type Stats struct {
	HighestTotal     float64 `json:"highest_total" msgpack:"highest_total"`
	LowestTotal      float64 `json:"lowest_total" msgpack:"lowest_total"`
	AverageTotal     float64 `json:"average_total" msgpack:"average_total"`
	AverageScoreMean float64 `json:"average_score_mean" msgpack:"average_score_mean"`
}

// Summary covers the whole qualifying population and the returned slice.
type Summary struct {
	TotalGroupAStudents int   `json:"total_group_a_students" msgpack:"total_group_a_students"`
	TopStudentsCount    int   `json:"top_students_count" msgpack:"top_students_count"`
	AllStudentsStats    Stats `json:"all_students_stats" msgpack:"all_students_stats"`
	TopStudentsStats    Stats `json:"top_students_stats" msgpack:"top_students_stats"`
}

// Criteria echoes the parameters a Result was computed with.
type Criteria struct {
	Group           string   `json:"group" msgpack:"group"`
	Subjects        []string `json:"subjects" msgpack:"subjects"`
	RankingMethod   string   `json:"ranking_method" msgpack:"ranking_method"`
	MinimumSubjects int      `json:"minimum_subjects" msgpack:"minimum_subjects"`
	Limit           int      `json:"limit" msgpack:"limit"`
}

// Result is a complete ranking response.
type Result struct {
	TopStudents []Entry  `json:"top_students" msgpack:"top_students"`
	Summary     Summary  `json:"summary" msgpack:"summary"`
	Criteria    Criteria `json:"criteria" msgpack:"criteria"`
}

// ClampLimit bounds limit to [1, MaxLimit]; values below one become DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
