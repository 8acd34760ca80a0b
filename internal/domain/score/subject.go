// Package score holds the exam score record, the subject table and the
// score-level classification shared by every aggregation path.
package score

import (
	"fmt"
	"strings"
)

// Subject identifies one of the nine examined subjects.
type Subject int

// Subjects in their fixed reporting order.
const (
	Math Subject = iota
	Literature
	ForeignLanguage
	Physics
	Chemistry
	Biology
	History
	Geography
	CivicEducation
)

type subjectInfo struct {
	key     string
	name    string
	column  string // CSV source column
	sqlName string
}

var subjectTable = [...]subjectInfo{
	Math:            {"math", "Mathematics", "toan", "math"},
	Literature:      {"literature", "Literature", "ngu_van", "literature"},
	ForeignLanguage: {"foreign_language", "Foreign Language", "ngoai_ngu", "foreign_language"},
	Physics:         {"physics", "Physics", "vat_li", "physics"},
	Chemistry:       {"chemistry", "Chemistry", "hoa_hoc", "chemistry"},
	Biology:         {"biology", "Biology", "sinh_hoc", "biology"},
	History:         {"history", "History", "lich_su", "history"},
	Geography:       {"geography", "Geography", "dia_li", "geography"},
	CivicEducation:  {"civic_education", "Civic Education", "gdcd", "civic_education"},
}

// aliases are extra names accepted by ParseSubject.
var aliases = map[string]Subject{
	"foreign_lang": ForeignLanguage,
}

// GroupA is the subject subset used for composite ranking.
var GroupA = []Subject{Math, Physics, Chemistry}

// All returns the nine subjects in reporting order.
func All() []Subject {
	out := make([]Subject, len(subjectTable))
	for i := range subjectTable {
		out[i] = Subject(i)
	}
	return out
}

// Valid reports whether s is one of the nine subjects.
func (s Subject) Valid() bool { return s >= 0 && int(s) < len(subjectTable) }

// Key is the stable machine name, e.g. "physics".
func (s Subject) Key() string {
	if !s.Valid() {
		return fmt.Sprintf("subject(%d)", int(s))
	}
	return subjectTable[s].key
}

// String implements fmt.Stringer.
func (s Subject) String() string { return s.Key() }

// DisplayName is the human readable name, e.g. "Physics".
func (s Subject) DisplayName() string {
	if !s.Valid() {
		return s.Key()
	}
	return subjectTable[s].name
}

// Column is the CSV column the subject is read from.
func (s Subject) Column() string {
	if !s.Valid() {
		return ""
	}
	return subjectTable[s].column
}

// SQLColumn is the storage column name.
func (s Subject) SQLColumn() string {
	if !s.Valid() {
		return ""
	}
	return subjectTable[s].sqlName
}

// ParseSubject resolves a subject key (case-insensitive). Unknown names
// yield a ValidationError.
func ParseSubject(name string) (Subject, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, info := range subjectTable {
		if info.key == n {
			return Subject(i), nil
		}
	}
	if s, ok := aliases[n]; ok {
		return s, nil
	}
	return 0, &ValidationError{Field: "subject", Value: name, Reason: "unknown subject"}
}

// DisplayNames returns the display names of subjects in order.
func DisplayNames(subjects []Subject) []string {
	out := make([]string, len(subjects))
	for i, s := range subjects {
		out[i] = s.DisplayName()
	}
	return out
}
