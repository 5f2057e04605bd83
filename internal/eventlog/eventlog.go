package eventlog

import (
	"strings"
	"time"

	logsDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/logs"
)

const (
	SeverityEmergency = "emergency"
	SeverityAlert     = "alert"
	SeverityCritical  = "critical"
	SeverityError     = "error"
	SeverityWarning   = "warning"
	SeverityNotice    = "notice"
	SeverityInfo      = "info"
	SeverityDebug     = "debug"
)

const (
	SourceZabbix  = "zabbix"
	SourceGraylog = "graylog"
	SourceGLPI    = "glpi"
	SourceLDAP    = "ldap"
	SourceVNC     = "vnc"
	SourceSync    = "sync"
)

const (
	maxSourceLen   = 255
	maxHostNameLen = 255
	maxMessageLen  = 65535
)

var severities = map[string]struct{}{
	SeverityEmergency: {},
	SeverityAlert:     {},
	SeverityCritical:  {},
	SeverityError:     {},
	SeverityWarning:   {},
	SeverityNotice:    {},
	SeverityInfo:      {},
	SeverityDebug:     {},
}

// NormalizeSeverity folds any input onto the eight canonical severities,
// defaulting to info.
func NormalizeSeverity(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := severities[s]; ok {
		return s
	}
	return SeverityInfo
}

type Event struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Severity  string    `json:"severity"`
	HostName  string    `json:"host_name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent applies defaults, severity normalization and column limits.
func NewEvent(source, severity, hostName, message string, at time.Time) *Event {
	if source == "" {
		source = "unknown"
	}
	if hostName == "" {
		hostName = "unknown"
	}
	if message == "" {
		message = "No message"
	}
	return &Event{
		Source:    truncate(source, maxSourceLen),
		Severity:  NormalizeSeverity(severity),
		HostName:  truncate(hostName, maxHostNameLen),
		Message:   truncate(message, maxMessageLen),
		Timestamp: at.UTC(),
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func ToDataModel(e *Event) *logsDatamodel.SystemLog {
	return &logsDatamodel.SystemLog{
		ID:        e.ID,
		Source:    e.Source,
		Severity:  e.Severity,
		HostName:  e.HostName,
		Message:   e.Message,
		Timestamp: e.Timestamp,
	}
}

func FromDataModel(l *logsDatamodel.SystemLog) Event {
	return Event{
		ID:        l.ID,
		Source:    l.Source,
		Severity:  l.Severity,
		HostName:  l.HostName,
		Message:   l.Message,
		Timestamp: l.Timestamp,
	}
}
