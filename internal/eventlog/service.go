package eventlog

import (
	"context"
	"log/slog"
	"time"

	logsDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/logs"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type RepositoryAPI interface {
	Insert(ctx context.Context, event *logsDatamodel.SystemLog) error
	List(ctx context.Context, source string, limit int) ([]*logsDatamodel.SystemLog, error)
}

// Recorder is the write side adapters depend on.
type Recorder interface {
	Record(ctx context.Context, source, severity, hostName, message string)
}

type ServiceAPI interface {
	Recorder
	Recent(ctx context.Context, source string, limit int) ([]Event, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

var _ ServiceAPI = (*Service)(nil)

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Record persists a system event. Storage failures are logged, not returned.
func (s *Service) Record(ctx context.Context, source, severity, hostName, message string) {
	event := NewEvent(source, severity, hostName, message, s.now())
	if err := s.repo.Insert(ctx, ToDataModel(event)); err != nil {
		s.logger.Error("failed to record system event",
			"source", event.Source,
			"severity", event.Severity,
			"error", err)
		return
	}
	s.logger.Debug("system event recorded",
		"source", event.Source,
		"severity", event.Severity,
		"host_name", event.HostName)
}

func (s *Service) Recent(ctx context.Context, source string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.repo.List(ctx, source, limit)
	if err != nil {
		s.logger.Error("failed to list system events", "source", source, "error", err)
		return nil, err
	}

	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, FromDataModel(r))
	}
	return events, nil
}
