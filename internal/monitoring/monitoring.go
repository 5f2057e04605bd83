// Package monitoring adapts the Zabbix host and trigger API into normalized
// host views, archives them and serves the archived view when Zabbix is down.
package monitoring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/opsboard/internal/core/i18n"
)

const (
	AvailabilityAvailable   = "Available"
	AvailabilityUnavailable = "Unavailable"
	AvailabilityUnknown     = "unknown"

	agentInterfaceType = "1"
	timeLayout         = "2006-01-02 15:04:05"
)

// Metric slots, in display order.
const (
	MetricCPU         = "cpu"
	MetricMemory      = "memory"
	MetricDisk        = "disk"
	MetricNetwork     = "network"
	MetricPing        = "ping"
	MetricUptime      = "uptime"
	MetricLastRestart = "last_restart"
)

var MetricSlots = []string{MetricCPU, MetricMemory, MetricDisk, MetricNetwork, MetricPing, MetricUptime, MetricLastRestart}

var priorityNames = map[string]string{
	"0": "not_classified",
	"1": "information",
	"2": "warning",
	"3": "average",
	"4": "high",
	"5": "disaster",
}

type Interface struct {
	IP        string `json:"ip"`
	Type      string `json:"type"`
	Available string `json:"available"`
}

// AlertGroup is the set of active triggers on one host sharing a description.
type AlertGroup struct {
	Description    string `json:"description"`
	Count          int    `json:"count"`
	LastOccurrence string `json:"last_occurrence"`
}

type Host struct {
	HostID       string            `json:"hostid"`
	Name         string            `json:"name"`
	Status       string            `json:"status"`
	Availability string            `json:"availability"`
	Interfaces   []Interface       `json:"interfaces"`
	Metrics      map[string]string `json:"metrics"`
	Alerts       []AlertGroup      `json:"alerts"`
	ArchivedAt   *time.Time        `json:"archived_at,omitempty"`
}

type UnknownHost struct {
	HostID string `json:"hostid"`
	Name   string `json:"name"`
}

type Alert struct {
	TriggerID           string `json:"triggerid"`
	Description         string `json:"description"`
	Priority            string `json:"priority"`
	PriorityNum         string `json:"priority_num"`
	HostName            string `json:"host_name"`
	LastChange          string `json:"last_change"`
	LastChangeTimestamp string `json:"last_change_timestamp"`
	Status              string `json:"status"`
	State               string `json:"state"`
	Value               string `json:"value"`
}

// Availability reads the agent interface: 1 is Available, 2 Unavailable,
// any other state or no agent interface unknown.
func Availability(ifaces []RawInterface) string {
	for _, iface := range ifaces {
		if iface.Type.String() != agentInterfaceType {
			continue
		}
		switch iface.Available.String() {
		case "1":
			return AvailabilityAvailable
		case "2":
			return AvailabilityUnavailable
		}
		return AvailabilityUnknown
	}
	return AvailabilityUnknown
}

func agentAvailable(ifaces []RawInterface) (string, bool) {
	for _, iface := range ifaces {
		if iface.Type.String() == agentInterfaceType {
			return iface.Available.String(), true
		}
	}
	return "", false
}

// NormalizeMetrics maps item keys onto the fixed metric slots. Unknown keys
// and unparsable values are skipped; empty slots hold the no-data sentinel.
func NormalizeMetrics(items []RawItem, locale i18n.Locale) map[string]string {
	noData := i18n.T(locale, "no_data")
	out := make(map[string]string, len(MetricSlots))
	for _, slot := range MetricSlots {
		out[slot] = noData
	}

	for _, item := range items {
		key := item.Key
		raw := item.LastValue.String()

		if key == "icmpping" || strings.HasPrefix(key, "icmpping[") {
			if raw == "1" {
				out[MetricPing] = "OK"
			} else {
				out[MetricPing] = "Failed"
			}
			continue
		}

		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		switch {
		case strings.Contains(key, "system.cpu.util"):
			out[MetricCPU] = fmt.Sprintf("%.2f%%", value)
		case strings.Contains(key, "vm.memory.size[total]"):
			out[MetricMemory] = fmt.Sprintf("%.2f GB", value/1024/1024/1024)
		case strings.Contains(key, "vfs.fs.size") && strings.Contains(key, "total"):
			out[MetricDisk] = fmt.Sprintf("%.2f GB", value/1024/1024/1024)
		case strings.Contains(key, "net.if.in") || strings.Contains(key, "net.if.out"):
			out[MetricNetwork] = fmt.Sprintf("%.2f MB/s", value/1024/1024)
		case strings.Contains(key, "system.uptime"):
			days := strings.Replace(fmt.Sprintf("%.1f", value/86400), ".", locale.DecimalSeparator(), 1)
			out[MetricUptime] = days + " " + i18n.T(locale, "uptime_days")
		}
	}
	return out
}

// AggregateTriggers keeps enabled triggers in problem state and groups them
// by description, ordered by description.
func AggregateTriggers(triggers []RawTrigger) []AlertGroup {
	type agg struct {
		count int
		last  int64
	}
	groups := make(map[string]*agg)
	for _, t := range triggers {
		if t.Status.String() != "0" || t.State.String() != "1" {
			continue
		}
		g, ok := groups[t.Description]
		if !ok {
			g = &agg{}
			groups[t.Description] = g
		}
		g.count++
		if lc := t.LastChange.Int64(); lc > g.last {
			g.last = lc
		}
	}

	out := make([]AlertGroup, 0, len(groups))
	for desc, g := range groups {
		out = append(out, AlertGroup{
			Description:    desc,
			Count:          g.count,
			LastOccurrence: time.Unix(g.last, 0).UTC().Format(timeLayout),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Description < out[j].Description })
	return out
}

// NormalizeHost builds the host view from a raw Zabbix host.
func NormalizeHost(raw RawHost, locale i18n.Locale) *Host {
	ifaces := make([]Interface, 0, len(raw.Interfaces))
	for _, i := range raw.Interfaces {
		ifaces = append(ifaces, Interface{IP: i.IP.String(), Type: i.Type.String(), Available: i.Available.String()})
	}
	return &Host{
		HostID:       raw.HostID.String(),
		Name:         raw.Name,
		Status:       raw.Status.String(),
		Availability: Availability(raw.Interfaces),
		Interfaces:   ifaces,
		Metrics:      NormalizeMetrics(raw.Items, locale),
		Alerts:       AggregateTriggers(raw.Triggers),
	}
}

func NormalizeAlert(t RawTrigger, locale i18n.Locale) Alert {
	priority := t.Priority.String()
	if priority == "" {
		priority = "0"
	}
	name, ok := priorityNames[priority]
	if !ok {
		name = priorityNames["0"]
	}

	lastChange := t.LastChange.String()
	if lastChange == "" {
		lastChange = "0"
	}
	formatted := i18n.T(locale, "unknown")
	if ts := t.LastChange.Int64(); ts != 0 {
		formatted = time.Unix(ts, 0).UTC().Format(timeLayout)
	}

	hostName := i18n.T(locale, "unknown_host")
	if len(t.Hosts) > 0 {
		hostName = t.Hosts[0].Name
	}

	return Alert{
		TriggerID:           t.TriggerID.String(),
		Description:         t.Description,
		Priority:            name,
		PriorityNum:         priority,
		HostName:            hostName,
		LastChange:          formatted,
		LastChangeTimestamp: lastChange,
		Status:              defaultString(t.Status.String(), "0"),
		State:               defaultString(t.State.String(), "0"),
		Value:               defaultString(t.Value.String(), "0"),
	}
}

// AlertSeverity is critical when the description says so, warning otherwise.
func AlertSeverity(description string) string {
	if strings.Contains(strings.ToLower(description), "critical") {
		return "critical"
	}
	return "warning"
}

// ArchivedStatus maps availability onto the stored status enum.
func ArchivedStatus(availability string) string {
	switch availability {
	case AvailabilityAvailable:
		return "available"
	case AvailabilityUnavailable:
		return "unavailable"
	}
	return "unknown"
}

func availabilityFromStatus(status string) string {
	switch status {
	case "available":
		return AvailabilityAvailable
	case "unavailable":
		return AvailabilityUnavailable
	}
	return AvailabilityUnknown
}

// MetricValue parses the leading number of a formatted slot, accepting a
// comma decimal separator. It returns false when there is none.
func MetricValue(formatted string) (float64, bool) {
	end := 0
	for end < len(formatted) {
		c := formatted[end]
		if (c >= '0' && c <= '9') || c == '.' || c == ',' || (c == '-' && end == 0) {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(formatted[:end], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
