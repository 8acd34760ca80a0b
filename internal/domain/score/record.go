package score

import "strings"

// Record is one candidate's scores keyed by registration number.
// A nil subject pointer means the candidate did not sit that subject.
type Record struct {
	RegistrationNumber  string   `json:"registration_number" msgpack:"registration_number"`
	Math                *float64 `json:"math" msgpack:"math"`
	Literature          *float64 `json:"literature" msgpack:"literature"`
	ForeignLanguage     *float64 `json:"foreign_language" msgpack:"foreign_language"`
	Physics             *float64 `json:"physics" msgpack:"physics"`
	Chemistry           *float64 `json:"chemistry" msgpack:"chemistry"`
	Biology             *float64 `json:"biology" msgpack:"biology"`
	History             *float64 `json:"history" msgpack:"history"`
	Geography           *float64 `json:"geography" msgpack:"geography"`
	CivicEducation      *float64 `json:"civic_education" msgpack:"civic_education"`
	ForeignLanguageCode string   `json:"foreign_language_code" msgpack:"foreign_language_code"`
}

func (r *Record) field(s Subject) **float64 {
	switch s {
	case Math:
		return &r.Math
	case Literature:
		return &r.Literature
	case ForeignLanguage:
		return &r.ForeignLanguage
	case Physics:
		return &r.Physics
	case Chemistry:
		return &r.Chemistry
	case Biology:
		return &r.Biology
	case History:
		return &r.History
	case Geography:
		return &r.Geography
	case CivicEducation:
		return &r.CivicEducation
	}
	return nil
}

// Score returns the value for s and whether it is present.
func (r Record) Score(s Subject) (float64, bool) {
	p := r.field(s)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

// SetScore stores v for s. A nil v marks the subject absent.
func (r *Record) SetScore(s Subject, v *float64) {
	if p := r.field(s); p != nil {
		if v != nil {
			c := *v
			v = &c
		}
		*p = v
	}
}

// PresentCount returns how many of the given subjects are present.
func (r Record) PresentCount(subjects []Subject) int {
	n := 0
	for _, s := range subjects {
		if _, ok := r.Score(s); ok {
			n++
		}
	}
	return n
}

// Validate checks the identity invariant.
func (r Record) Validate() error {
	if strings.TrimSpace(r.RegistrationNumber) == "" {
		return &ValidationError{Field: "registration_number", Reason: "must not be empty"}
	}
	return nil
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
