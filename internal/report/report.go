// Package report turns stored operational data into downloadable files and
// keeps a record of what was generated.
package report

import (
	"encoding/json"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/common/validation"
	reportDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/report"
)

const (
	TypeAssets      = "assets"
	TypeHosts       = "hosts"
	TypeMessages    = "messages"
	TypeTasks       = "tasks"
	TypeDepartments = "departments"
)

var Types = []string{TypeAssets, TypeHosts, TypeMessages, TypeTasks, TypeDepartments}

const (
	RangeAll       = "all"
	RangeToday     = "today"
	RangeYesterday = "yesterday"
	RangeThisWeek  = "thisWeek"
	RangeLastWeek  = "lastWeek"
	RangeThisMonth = "thisMonth"
	RangeLastMonth = "lastMonth"
	RangeCustom    = "custom"
)

var Ranges = []string{RangeAll, RangeToday, RangeYesterday, RangeThisWeek, RangeLastWeek, RangeThisMonth, RangeLastMonth, RangeCustom}

const (
	DefaultRecordLimit = 500
	DefaultRecentLimit = 10
)

// Table is a report's rows rendered to strings, in column order.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Select keeps the named columns in the order given. Unknown names are
// ignored; an empty list keeps everything.
func (t *Table) Select(fields []string) *Table {
	if len(fields) == 0 {
		return t
	}
	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		index[c] = i
	}
	var keep []int
	out := &Table{}
	for _, f := range fields {
		if i, ok := index[f]; ok {
			keep = append(keep, i)
			out.Columns = append(out.Columns, f)
		}
	}
	if len(keep) == 0 {
		return t
	}
	out.Rows = make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		picked := make([]string, len(keep))
		for j, i := range keep {
			picked[j] = row[i]
		}
		out.Rows = append(out.Rows, picked)
	}
	return out
}

// Query selects the source rows for one report.
type Query struct {
	Type  string
	Start *time.Time
	End   *time.Time
	Limit int
}

type Report struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Format      string          `json:"format"`
	RecordCount int             `json:"record_count"`
	GeneratedBy string          `json:"generated_by"`
	GeneratedAt time.Time       `json:"generated_at"`
	Path        string          `json:"path"`
	Params      json.RawMessage `json:"params,omitempty"`
}

func FromDataModel(r *reportDatamodel.Report) *Report {
	out := &Report{
		ID:          r.ID,
		Name:        r.Name,
		Type:        r.Type,
		Format:      r.Format,
		RecordCount: r.RecordCount,
		GeneratedBy: r.GeneratedBy,
		GeneratedAt: r.GeneratedAt,
		Path:        r.Path,
	}
	if len(r.Params) > 0 {
		out.Params = json.RawMessage(r.Params)
	}
	return out
}

// Params is what gets stored alongside a report so it can be regenerated.
type Params struct {
	DateRange   string     `json:"date_range"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Fields      []string   `json:"fields"`
	RecordLimit int        `json:"record_limit"`
}

type GenerateRequest struct {
	Type      string   `json:"report_type"`
	Format    string   `json:"format"`
	DateRange string   `json:"date_range"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Fields    []string `json:"fields"`
	// RecordLimit of 0 means the default; a negative value means no limit.
	RecordLimit int `json:"record_limit"`
}

func (r *GenerateRequest) Validate(formats []string) error {
	v := validation.NewValidator()
	v.Field("report_type", r.Type).Required().OneOf(Types, internal.ErrCodeValidationFailed)
	v.Field("format", r.Format).OneOf(formats, internal.ErrCodeInvalidFileType)
	v.Field("date_range", r.DateRange).OneOf(Ranges, internal.ErrCodeValidationFailed)
	v.Field("start_date", r.StartDate).Date()
	v.Field("end_date", r.EndDate).Date()
	if r.DateRange == RangeCustom {
		v.Field("start_date", r.StartDate).Required()
		v.Field("end_date", r.EndDate).Required()
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (r *GenerateRequest) limit() int {
	switch {
	case r.RecordLimit == 0:
		return DefaultRecordLimit
	case r.RecordLimit < 0:
		return 0
	}
	return r.RecordLimit
}

// ResolveRange turns a named range into inclusive bounds relative to now.
// RangeAll and the empty name yield no bounds.
func ResolveRange(name, start, end string, now time.Time) (*time.Time, *time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endOf := func(day time.Time) *time.Time {
		t := day.Add(24*time.Hour - time.Second)
		return &t
	}
	at := func(t time.Time) *time.Time { return &t }

	switch name {
	case RangeToday:
		return at(today), endOf(today)
	case RangeYesterday:
		y := today.AddDate(0, 0, -1)
		return at(y), endOf(y)
	case RangeThisWeek:
		monday := today.AddDate(0, 0, -mondayOffset(today))
		return at(monday), endOf(today)
	case RangeLastWeek:
		monday := today.AddDate(0, 0, -mondayOffset(today)-7)
		return at(monday), endOf(monday.AddDate(0, 0, 6))
	case RangeThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return at(first), endOf(today)
	case RangeLastMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		prev := first.AddDate(0, -1, 0)
		return at(prev), at(first.Add(-time.Second))
	case RangeCustom:
		from, err1 := time.Parse(time.DateOnly, start)
		to, err2 := time.Parse(time.DateOnly, end)
		if err1 != nil || err2 != nil {
			return nil, nil
		}
		return at(from), endOf(to)
	}
	return nil, nil
}

func mondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
