// Package logs pulls application log messages from Graylog, classifies and
// stores them, and serves buffered payloads and time-bucketed histograms.
package logs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Severities, ordered high to low.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

const (
	CategorySystemError    = "System Error"
	CategorySecurityAlert  = "Security Alert"
	CategoryPerformance    = "Performance Issue"
	CategoryServiceStatus  = "Service Status"
	CategoryGeneralWarning = "General Warning"
)

const (
	defaultLevel    = "INFO"
	TimestampLayout = "2006-01-02 15:04:05.000"
	QueryTimeLayout = "2006-01-02 15:04:05"
)

var severityRank = map[string]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2}

var categoryRules = []struct {
	category string
	keywords []string
}{
	{CategorySystemError, []string{"error"}},
	{CategorySecurityAlert, []string{"unauthorized", "forbidden", "denied"}},
	{CategoryPerformance, []string{"timeout", "slow", "performance"}},
	{CategoryServiceStatus, []string{"service", "started", "stopped"}},
}

// Parsed holds the fields recovered from a "<pid> - {json}" payload.
type Parsed struct {
	ProcessID   string
	SessionName string
	FormName    string
	DBSessionID string
	Username    string
	CallSite    string
	Thread      string
	Type        string
	Message     string
}

// Details returns the non-empty structured fields keyed as stored.
func (p Parsed) Details() map[string]string {
	out := map[string]string{}
	add := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	add("process_id", p.ProcessID)
	add("formssessionname", p.SessionName)
	add("formsformname", p.FormName)
	add("formsdbsessionid", p.DBSessionID)
	add("formsusername", p.Username)
	add("callsite", p.CallSite)
	add("thread", p.Thread)
	add("type", p.Type)
	return out
}

// Message is one classified log line.
type Message struct {
	Timestamp time.Time         `json:"-"`
	Level     string            `json:"level"`
	Severity  string            `json:"severity"`
	Category  string            `json:"category"`
	Details   map[string]string `json:"details"`
	Text      string            `json:"message"`
	HostName  string            `json:"-"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return json.Marshal(struct {
		Timestamp string `json:"timestamp"`
		alias
	}{m.Timestamp.UTC().Format(TimestampLayout), alias(m)})
}

// Hash keys the message text for the (timestamp, message) uniqueness rule.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type Stats struct {
	ErrorCount int `json:"error_count"`
	WarnCount  int `json:"warn_count"`
	InfoCount  int `json:"info_count"`
}

func (s *Stats) add(severity string) {
	switch severity {
	case SeverityHigh:
		s.ErrorCount++
	case SeverityMedium:
		s.WarnCount++
	default:
		s.InfoCount++
	}
}

// Payload is the buffered answer to a log fetch.
type Payload struct {
	Logs         []Message `json:"logs"`
	TotalResults int       `json:"total_results"`
	TimeRange    string    `json:"time_range"`
	QueryTime    string    `json:"query_time"`
	Stats        Stats     `json:"stats"`
	Language     string    `json:"language"`
}

// ParseMessage decodes a stored document. Documents that are not a
// "<pid> - {json}" payload keep their raw text as the message.
func ParseMessage(raw json.RawMessage) Parsed {
	inner := innerMessage(raw)
	if nested, ok := extractNested(inner); ok {
		return nested
	}
	return Parsed{Message: inner}
}

func innerMessage(raw json.RawMessage) string {
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err == nil {
		return stringify(doc["message"])
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	if err := json.Unmarshal([]byte(s), &doc); err == nil {
		return stringify(doc["message"])
	}
	return s
}

func extractNested(s string) (Parsed, bool) {
	dash := strings.Index(s, "-")
	if dash == -1 {
		return Parsed{}, false
	}
	brace := strings.Index(s[dash:], "{")
	if brace == -1 {
		return Parsed{}, false
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(s[dash+brace:]), &data); err != nil {
		return Parsed{}, false
	}

	typ := stringify(data["type"])
	if typ == "" {
		typ = defaultLevel
	}
	return Parsed{
		ProcessID:   strings.TrimSpace(s[:dash]),
		SessionName: stringify(data["formsSessionName"]),
		FormName:    stringify(data["formsFormName"]),
		DBSessionID: stringify(data["formsDbSessionId"]),
		Username:    stringify(data["formsUsername"]),
		CallSite:    stringify(data["callSite"]),
		Thread:      stringify(data["thread"]),
		Type:        typ,
		Message:     strings.TrimSpace(stringify(data["message"])),
	}, true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Classify derives severity from the level and message text.
func Classify(level, text string) string {
	lower := strings.ToLower(text)
	switch {
	case level == "ERROR" || strings.Contains(lower, "error"):
		return SeverityHigh
	case level == "WARN" || strings.Contains(lower, "warning"):
		return SeverityMedium
	}
	return SeverityLow
}

// Categorize returns the first category whose keywords appear in text.
func Categorize(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range categoryRules {
		for _, k := range rule.keywords {
			if strings.Contains(lower, k) {
				return rule.category
			}
		}
	}
	return CategoryGeneralWarning
}

// NormalizeTimestamp parses an ISO-8601 timestamp, falling back to now.
// The result is UTC truncated to milliseconds.
func NormalizeTimestamp(ts string, now time.Time) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC().Truncate(time.Millisecond)
		}
	}
	return now.UTC().Truncate(time.Millisecond)
}

// EventSeverity maps a message severity onto the system-log enum.
func EventSeverity(severity string) string {
	switch severity {
	case SeverityHigh:
		return "critical"
	case SeverityMedium:
		return "warning"
	}
	return "info"
}

// Build turns a search hit into a classified message.
func Build(raw RawMessage, now time.Time) Message {
	p := ParseMessage(raw.Message)
	level := strings.ToUpper(p.Type)
	if level == "" {
		level = defaultLevel
	}

	ts := raw.Timestamp
	if ts == "" {
		var doc struct {
			Timestamp string `json:"timestamp"`
		}
		if err := json.Unmarshal(raw.Message, &doc); err == nil {
			ts = doc.Timestamp
		}
	}

	text := strings.TrimSpace(p.Message)
	host := p.DBSessionID
	if host == "" {
		host = "unknown"
	}
	return Message{
		Timestamp: NormalizeTimestamp(ts, now),
		Level:     level,
		Severity:  Classify(level, text),
		Category:  Categorize(text),
		Details:   p.Details(),
		Text:      text,
		HostName:  host,
	}
}

// SortMessages orders by timestamp, then high before medium before low.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		}
		return severityRank[msgs[i].Severity] < severityRank[msgs[j].Severity]
	})
}
