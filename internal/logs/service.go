package logs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	logsDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/logs"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/core/result"
	"github.com/frahmantamala/opsboard/internal/eventlog"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

const (
	DefaultMessageLimit = 2000
	maxMessageLimit     = 10000
	maxTimelineRows     = 20000

	sharedFetchTimeout = 2 * time.Minute
)

type RepositoryAPI interface {
	// Upsert inserts messages keyed by (timestamp, message_hash); existing
	// rows get level, severity and category refreshed.
	Upsert(ctx context.Context, rows []*logsDatamodel.LogMessage) error
	// SeverityPoints lists stored messages in [start, end).
	SeverityPoints(ctx context.Context, start, end time.Time) ([]SeverityPoint, error)
	// Messages lists stored messages in [start, end], newest first, ties by
	// severity ascending.
	Messages(ctx context.Context, start, end time.Time, limit int) ([]*logsDatamodel.LogMessage, error)
	Counts(ctx context.Context, start, end time.Time) (MessageStats, error)
}

type ServiceAPI interface {
	Fetch(ctx context.Context, rangeMinutes int, force bool, locale i18n.Locale) result.Result[*Payload]
	Timeline(ctx context.Context, start, end time.Time, bucket Bucket) ([]TimelineRow, error)
	Messages(ctx context.Context, start, end time.Time, limit int) (*MessagePage, error)
}

type MessageStats struct {
	ErrorCount int `json:"error_count"`
	WarnCount  int `json:"warn_count"`
	InfoCount  int `json:"info_count"`
	TotalCount int `json:"total_count"`
}

type MessagePage struct {
	Messages     []Message    `json:"messages"`
	Stats        MessageStats `json:"stats"`
	TotalInDB    int          `json:"total_in_db"`
	TotalResults int          `json:"total_results"`
}

type Options struct {
	MaxMessages        int
	MinRefreshInterval time.Duration
}

type Service struct {
	client ClientAPI
	repo   RepositoryAPI
	events eventlog.Recorder
	buffer *Buffer
	opts   Options
	group  singleflight.Group
	logger *slog.Logger
}

var _ ServiceAPI = (*Service)(nil)

func NewService(client ClientAPI, repo RepositoryAPI, events eventlog.Recorder, buffer *Buffer, opts Options, logger *slog.Logger) *Service {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 300
	}
	if opts.MinRefreshInterval <= 0 {
		opts.MinRefreshInterval = 300 * time.Second
	}
	return &Service{
		client: client,
		repo:   repo,
		events: events,
		buffer: buffer,
		opts:   opts,
		logger: logger,
	}
}

// Fetch returns the buffered payload for rangeMinutes when one exists, the
// latest payload of any range when the last upstream fetch is younger than
// the minimum interval, and otherwise pulls a fresh batch. force skips both
// shortcuts. Concurrent fetches of one range share a single upstream walk.
func (s *Service) Fetch(ctx context.Context, rangeMinutes int, force bool, locale i18n.Locale) result.Result[*Payload] {
	if !force {
		if p, ok := s.buffer.Get(rangeMinutes); ok {
			return result.Ok(p)
		}
		last := s.buffer.LastRefresh()
		if !last.IsZero() && s.buffer.Now().Sub(last) < s.opts.MinRefreshInterval {
			if p := s.buffer.Latest(); p != nil {
				return result.Ok(p)
			}
		}
	}

	// The shared walk outlives any one caller so a cancelled request does not
	// fail the others joined on it.
	ch := s.group.DoChan(strconv.Itoa(rangeMinutes), func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return s.fetch(shared, rangeMinutes, locale)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return result.Err[*Payload](ctx.Err().Error())
	}
	if res.Err != nil {
		s.logger.Error("failed to fetch logs from graylog", "range_minutes", rangeMinutes, "error", res.Err)
		s.events.Record(ctx, eventlog.SourceGraylog, eventlog.SeverityError, "system", i18n.T(locale, "error_fetching", res.Err.Error()))
		return result.Err[*Payload](res.Err.Error())
	}
	return result.Ok(res.Val.(*Payload))
}

func (s *Service) fetch(ctx context.Context, rangeMinutes int, locale i18n.Locale) (*Payload, error) {
	now := s.buffer.Now()
	var msgs []Message
	batch := 0
	for page, err := range s.client.Pages(ctx, rangeMinutes) {
		if err != nil {
			return nil, err
		}
		batch++
		for _, raw := range page {
			msgs = append(msgs, Build(raw, now))
		}
		s.logger.Debug(i18n.T(i18n.EN, "fetched_batch", batch, len(msgs)))
		if len(msgs) >= s.opts.MaxMessages {
			break
		}
	}
	if len(msgs) > s.opts.MaxMessages {
		msgs = msgs[:s.opts.MaxMessages]
	}
	if msgs == nil {
		msgs = []Message{}
	}

	SortMessages(msgs)
	var stats Stats
	for _, m := range msgs {
		stats.add(m.Severity)
	}

	if err := s.repo.Upsert(ctx, toDataModel(msgs)); err != nil {
		s.logger.Error("failed to store log messages", "count", len(msgs), "error", err)
	}
	for _, m := range msgs {
		s.events.Record(ctx, eventlog.SourceGraylog, EventSeverity(m.Severity), m.HostName, m.Text)
	}

	payload := &Payload{
		Logs:         msgs,
		TotalResults: len(msgs),
		TimeRange:    i18n.T(locale, "time_range", rangeMinutes),
		QueryTime:    now.UTC().Format(QueryTimeLayout),
		Stats:        stats,
		Language:     string(locale),
	}
	s.buffer.Add(rangeMinutes, payload)
	return payload, nil
}

// toDataModel keeps the last message for each (timestamp, text) pair so one
// batch never touches the same row twice.
func toDataModel(msgs []Message) []*logsDatamodel.LogMessage {
	type key struct {
		ts   int64
		hash string
	}
	index := make(map[key]int, len(msgs))
	rows := make([]*logsDatamodel.LogMessage, 0, len(msgs))
	for _, m := range msgs {
		details, _ := json.Marshal(m.Details)
		row := &logsDatamodel.LogMessage{
			Timestamp:   m.Timestamp.UTC(),
			MessageHash: Hash(m.Text),
			Level:       m.Level,
			Severity:    m.Severity,
			Category:    m.Category,
			Message:     m.Text,
			Details:     datatypes.JSON(details),
		}
		k := key{row.Timestamp.UnixNano(), row.MessageHash}
		if i, ok := index[k]; ok {
			rows[i] = row
			continue
		}
		index[k] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

func fromDataModel(row *logsDatamodel.LogMessage) Message {
	details := map[string]string{}
	if len(row.Details) > 0 {
		_ = json.Unmarshal(row.Details, &details)
	}
	return Message{
		Timestamp: row.Timestamp.UTC(),
		Level:     row.Level,
		Severity:  row.Severity,
		Category:  row.Category,
		Details:   details,
		Text:      row.Message,
	}
}

// Timeline returns one row per bucket between start and end, zero-count
// buckets included.
func (s *Service) Timeline(ctx context.Context, start, end time.Time, bucket Bucket) ([]TimelineRow, error) {
	if end.Before(start) {
		return nil, internal.NewValidationError("end must not be before start", internal.ErrCodeInvalidDate)
	}
	if int(end.Sub(start)/bucket.Step) > maxTimelineRows {
		return nil, internal.NewValidationError("time range too large for bucket", internal.ErrCodeInvalidDate)
	}

	starts := BucketStarts(start, end, bucket)
	last := starts[len(starts)-1].Add(bucket.Step)
	points, err := s.repo.SeverityPoints(ctx, starts[0], last)
	if err != nil {
		return nil, err
	}
	return Histogram(starts, bucket, points), nil
}

// Messages returns stored messages in [start, end], newest first, with
// stats over the whole range rather than the limited page.
func (s *Service) Messages(ctx context.Context, start, end time.Time, limit int) (*MessagePage, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	start, end = start.UTC(), end.UTC()

	rows, err := s.repo.Messages(ctx, start, end, limit)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Counts(ctx, start, end)
	if err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, fromDataModel(row))
	}
	return &MessagePage{Messages: msgs, Stats: stats, TotalInDB: stats.TotalCount, TotalResults: stats.TotalCount}, nil
}
