package logs

import (
	"time"
)

// Bucket is one of the supported histogram widths.
type Bucket struct {
	Name   string
	Step   time.Duration
	Layout string
	Daily  bool
}

const DefaultBucket = "5 minutes"

var buckets = map[string]Bucket{
	"1 minutes":  {Name: "1 minutes", Step: time.Minute, Layout: "2006-01-02 15:04"},
	"2 minutes":  {Name: "2 minutes", Step: 2 * time.Minute, Layout: "2006-01-02 15:04"},
	"5 minutes":  {Name: "5 minutes", Step: 5 * time.Minute, Layout: "2006-01-02 15:04"},
	"10 minutes": {Name: "10 minutes", Step: 10 * time.Minute, Layout: "2006-01-02 15:04"},
	"15 minutes": {Name: "15 minutes", Step: 15 * time.Minute, Layout: "2006-01-02 15:04"},
	"30 minutes": {Name: "30 minutes", Step: 30 * time.Minute, Layout: "2006-01-02 15:04"},
	"60 minutes": {Name: "60 minutes", Step: time.Hour, Layout: "2006-01-02 15:00"},
	"1 day":      {Name: "1 day", Step: 24 * time.Hour, Layout: "2006-01-02", Daily: true},
}

func ParseBucket(name string) (Bucket, bool) {
	b, ok := buckets[name]
	return b, ok
}

type TimelineRow struct {
	TimeInterval string `json:"time_interval"`
	HighCount    int    `json:"high_count"`
	MediumCount  int    `json:"medium_count"`
	LowCount     int    `json:"low_count"`
	TotalCount   int    `json:"total_count"`
}

// SeverityPoint is the projection the timeline is counted from.
type SeverityPoint struct {
	Timestamp time.Time
	Severity  string
}

// BucketStarts returns start, start+step, ... up to and including the first
// point not before end. Daily buckets are aligned to UTC midnight.
func BucketStarts(start, end time.Time, b Bucket) []time.Time {
	start, end = start.UTC(), end.UTC()
	if b.Daily {
		start = start.Truncate(24 * time.Hour)
		end = end.Truncate(24 * time.Hour)
	}
	var out []time.Time
	for t := start; ; t = t.Add(b.Step) {
		out = append(out, t)
		if !t.Before(end) {
			break
		}
	}
	return out
}

// Histogram counts points into the half-open bucket [t, t+step) of each
// start. Points outside every bucket are ignored.
func Histogram(starts []time.Time, b Bucket, points []SeverityPoint) []TimelineRow {
	rows := make([]TimelineRow, len(starts))
	for i, t := range starts {
		rows[i].TimeInterval = t.Format(b.Layout)
	}
	if len(starts) == 0 {
		return rows
	}

	first := starts[0]
	for _, p := range points {
		ts := p.Timestamp.UTC()
		if ts.Before(first) {
			continue
		}
		idx := int(ts.Sub(first) / b.Step)
		if idx >= len(rows) {
			continue
		}
		row := &rows[idx]
		switch p.Severity {
		case SeverityHigh:
			row.HighCount++
		case SeverityMedium:
			row.MediumCount++
		case SeverityLow:
			row.LowCount++
		}
		row.TotalCount++
	}
	return rows
}
