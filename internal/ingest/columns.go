package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/okian/scorestat/internal/domain/score"
)

const (
	identityColumn     = "sbd"
	languageCodeColumn = "ma_ngoai_ngu"
)

type kind int

const (
	numeric kind = iota
	verbatim
)

// column maps one CSV column onto a record field.
type column struct {
	source  string
	subject score.Subject
	kind    kind
}

// columns is the fixed CSV layout. Unknown columns are ignored.
var columns = []column{
	{"toan", score.Math, numeric},
	{"ngu_van", score.Literature, numeric},
	{"ngoai_ngu", score.ForeignLanguage, numeric},
	{"vat_li", score.Physics, numeric},
	{"hoa_hoc", score.Chemistry, numeric},
	{"sinh_hoc", score.Biology, numeric},
	{"lich_su", score.History, numeric},
	{"dia_li", score.Geography, numeric},
	{"gdcd", score.CivicEducation, numeric},
	{languageCodeColumn, 0, verbatim},
}

// layout resolves header positions once per file.
type layout struct {
	identity int
	fields   []boundColumn
}

type boundColumn struct {
	column
	index int
}

func newLayout(header []string) (layout, bool) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	id, ok := pos[identityColumn]
	if !ok {
		return layout{}, false
	}
	l := layout{identity: id}
	for _, c := range columns {
		if i, ok := pos[c.source]; ok {
			l.fields = append(l.fields, boundColumn{column: c, index: i})
		}
	}
	return l, true
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// clean builds a record from one CSV row. Unparsable numbers become absent.
func (l layout) clean(row []string) (score.Record, error) {
	rec := score.Record{RegistrationNumber: strings.TrimSpace(cell(row, l.identity))}
	if rec.RegistrationNumber == "" {
		return score.Record{}, ErrMissingIdentity
	}
	for _, f := range l.fields {
		v := strings.TrimSpace(cell(row, f.index))
		switch f.kind {
		case verbatim:
			rec.ForeignLanguageCode = v
		case numeric:
			rec.SetScore(f.subject, parseScore(v))
		}
	}
	return rec, nil
}

func parseScore(v string) *float64 {
	if v == "" {
		return nil
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}
