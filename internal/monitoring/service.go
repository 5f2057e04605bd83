package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	monitoringDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/monitoring"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/core/result"
	"github.com/frahmantamala/opsboard/internal/eventlog"
	"gorm.io/datatypes"
)

const (
	alertLimit          = 100
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Host list views.
const (
	ViewAll         = ""
	ViewAvailable   = "available"
	ViewUnavailable = "unavailable"
	ViewUnknown     = "unknown"
)

type RepositoryAPI interface {
	// Archive writes one host status row and its metric rows atomically.
	Archive(ctx context.Context, status *monitoringDatamodel.HostStatusHistory, metrics []*monitoringDatamodel.PerformanceMetric) error
	LastStatus(ctx context.Context, hostID string) (*monitoringDatamodel.HostStatusHistory, error)
	LatestStatuses(ctx context.Context) ([]*monitoringDatamodel.HostStatusHistory, error)
	StatusHistory(ctx context.Context, hostName string, limit int) ([]*monitoringDatamodel.HostStatusHistory, error)
	Metrics(ctx context.Context, hostID, metricType string, start, end time.Time) ([]*monitoringDatamodel.PerformanceMetric, error)
}

type ServiceAPI interface {
	Hosts(ctx context.Context, locale i18n.Locale, view string) result.Result[[]*Host]
	UnknownHosts(ctx context.Context) result.Result[[]UnknownHost]
	Alerts(ctx context.Context, locale i18n.Locale) result.Result[[]Alert]
	HistoricalMetrics(ctx context.Context, hostID, metricType string, start, end time.Time) ([]MetricPoint, error)
	StatusHistory(ctx context.Context, hostName string, limit int) ([]StatusPoint, error)
}

type MetricPoint struct {
	MetricType string          `json:"metric_type"`
	Value      float64         `json:"value"`
	Timestamp  time.Time       `json:"timestamp"`
	Details    json.RawMessage `json:"details,omitempty"`
}

type StatusPoint struct {
	HostName     string          `json:"host_name"`
	Status       string          `json:"status"`
	Timestamp    time.Time       `json:"timestamp"`
	ResponseTime *float64        `json:"response_time"`
	Details      json.RawMessage `json:"details,omitempty"`
}

type Service struct {
	client ClientAPI
	repo   RepositoryAPI
	events eventlog.Recorder
	logger *slog.Logger
	now    func() time.Time
}

var _ ServiceAPI = (*Service)(nil)

func NewService(client ClientAPI, repo RepositoryAPI, events eventlog.Recorder, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Hosts fetches every monitored host, records alerts and availability flips,
// archives status and metrics, and returns the normalized list filtered by
// view. When Zabbix fails the last archived status of each host is served.
func (s *Service) Hosts(ctx context.Context, locale i18n.Locale, view string) result.Result[[]*Host] {
	raw, err := s.client.Hosts(ctx)
	if err != nil {
		s.logger.Error("failed to fetch hosts from zabbix", "error", err)
		s.events.Record(ctx, eventlog.SourceZabbix, eventlog.SeverityError, "system", fmt.Sprintf("Error fetching hosts: %v", err))
		return s.archivedHosts(ctx, view, err.Error())
	}

	hosts := make([]*Host, 0, len(raw))
	for _, rh := range raw {
		h := NormalizeHost(rh, locale)
		s.recordEvents(ctx, h)
		if h.HostID != "" && h.Name != "" {
			s.archive(ctx, h)
		}
		hosts = append(hosts, h)
	}
	return result.Ok(filterView(hosts, view))
}

func (s *Service) recordEvents(ctx context.Context, h *Host) {
	for _, a := range h.Alerts {
		s.events.Record(ctx, eventlog.SourceZabbix, AlertSeverity(a.Description), h.Name, a.Description)
	}
	if h.Availability != AvailabilityUnavailable {
		return
	}

	prev, err := s.repo.LastStatus(ctx, h.HostID)
	if err != nil {
		s.logger.Warn("failed to read last host status", "host", h.Name, "error", err)
	}
	if prev == nil || prev.Status != ArchivedStatus(AvailabilityUnavailable) {
		s.events.Record(ctx, eventlog.SourceZabbix, eventlog.SeverityError, h.Name, "Host became unavailable")
	}
}

func (s *Service) archive(ctx context.Context, h *Host) {
	now := s.now().UTC()
	details, err := json.Marshal(h.Metrics)
	if err != nil {
		s.logger.Error("failed to encode host metrics", "host", h.Name, "error", err)
		return
	}

	status := &monitoringDatamodel.HostStatusHistory{
		HostID:    h.HostID,
		HostName:  h.Name,
		Status:    ArchivedStatus(h.Availability),
		Details:   datatypes.JSON(details),
		Timestamp: now,
	}

	noData := map[string]bool{i18n.T(i18n.EN, "no_data"): true, i18n.T(i18n.PL, "no_data"): true}
	var rows []*monitoringDatamodel.PerformanceMetric
	for _, slot := range MetricSlots {
		formatted, ok := h.Metrics[slot]
		if !ok || noData[formatted] {
			continue
		}
		value, _ := MetricValue(formatted)
		d, _ := json.Marshal(map[string]string{"formatted": formatted})
		rows = append(rows, &monitoringDatamodel.PerformanceMetric{
			HostID:     h.HostID,
			MetricType: slot,
			Value:      value,
			Timestamp:  now,
			Details:    datatypes.JSON(d),
		})
	}

	if err := s.repo.Archive(ctx, status, rows); err != nil {
		s.logger.Error("failed to archive host", "host", h.Name, "error", err)
	}
}

func (s *Service) archivedHosts(ctx context.Context, view, reason string) result.Result[[]*Host] {
	rows, err := s.repo.LatestStatuses(ctx)
	if err != nil {
		s.logger.Error("failed to load archived host statuses", "error", err)
		return result.Err[[]*Host](reason)
	}
	if len(rows) == 0 {
		return result.Err[[]*Host](reason)
	}

	hosts := make([]*Host, 0, len(rows))
	for _, row := range rows {
		m := map[string]string{}
		if len(row.Details) > 0 {
			if err := json.Unmarshal(row.Details, &m); err != nil {
				s.logger.Warn("skipping malformed archived metrics", "host", row.HostName, "error", err)
			}
		}
		ts := row.Timestamp.UTC()
		hosts = append(hosts, &Host{
			HostID:       row.HostID,
			Name:         row.HostName,
			Availability: availabilityFromStatus(row.Status),
			Interfaces:   []Interface{},
			Metrics:      m,
			Alerts:       []AlertGroup{},
			ArchivedAt:   &ts,
		})
	}
	return result.Degraded(filterView(hosts, view), reason)
}

func filterView(hosts []*Host, view string) []*Host {
	var want string
	switch view {
	case ViewAvailable:
		want = AvailabilityAvailable
	case ViewUnavailable:
		want = AvailabilityUnavailable
	case ViewUnknown:
		want = AvailabilityUnknown
	default:
		return hosts
	}
	out := make([]*Host, 0, len(hosts))
	for _, h := range hosts {
		if h.Availability == want {
			out = append(out, h)
		}
	}
	return out
}

// UnknownHosts lists hosts whose agent interface reports available=2.
func (s *Service) UnknownHosts(ctx context.Context) result.Result[[]UnknownHost] {
	raw, err := s.client.AgentHosts(ctx)
	if err != nil {
		s.logger.Error("failed to fetch unknown hosts", "error", err)
		return result.Err[[]UnknownHost](err.Error())
	}
	out := make([]UnknownHost, 0)
	for _, h := range raw {
		if avail, ok := agentAvailable(h.Interfaces); ok && avail == "2" {
			out = append(out, UnknownHost{HostID: h.HostID.String(), Name: h.Name})
		}
	}
	return result.Ok(out)
}

// Alerts returns firing triggers, newest first, capped at 100.
func (s *Service) Alerts(ctx context.Context, locale i18n.Locale) result.Result[[]Alert] {
	raw, err := s.client.ProblemTriggers(ctx, alertLimit)
	if err != nil {
		s.logger.Error("failed to fetch zabbix alerts", "error", err)
		s.events.Record(ctx, eventlog.SourceZabbix, eventlog.SeverityError, "system", fmt.Sprintf("Error fetching alerts: %v", err))
		return result.Err[[]Alert](err.Error())
	}
	if len(raw) > alertLimit {
		raw = raw[:alertLimit]
	}
	alerts := make([]Alert, 0, len(raw))
	for _, t := range raw {
		alerts = append(alerts, NormalizeAlert(t, locale))
	}
	return result.Ok(alerts)
}

func (s *Service) HistoricalMetrics(ctx context.Context, hostID, metricType string, start, end time.Time) ([]MetricPoint, error) {
	rows, err := s.repo.Metrics(ctx, hostID, metricType, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	out := make([]MetricPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, MetricPoint{
			MetricType: r.MetricType,
			Value:      r.Value,
			Timestamp:  r.Timestamp.UTC(),
			Details:    json.RawMessage(r.Details),
		})
	}
	return out, nil
}

func (s *Service) StatusHistory(ctx context.Context, hostName string, limit int) ([]StatusPoint, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	rows, err := s.repo.StatusHistory(ctx, hostName, limit)
	if err != nil {
		return nil, err
	}
	out := make([]StatusPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, StatusPoint{
			HostName:     r.HostName,
			Status:       r.Status,
			Timestamp:    r.Timestamp.UTC(),
			ResponseTime: r.ResponseTime,
			Details:      json.RawMessage(r.Details),
		})
	}
	return out, nil
}
