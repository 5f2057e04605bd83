package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/core/cache"
	assetDatamodel "github.com/frahmantamala/opsboard/internal/core/datamodel/asset"
	"github.com/frahmantamala/opsboard/internal/core/events"
	"github.com/frahmantamala/opsboard/internal/core/metrics"
	"github.com/frahmantamala/opsboard/internal/eventlog"
	"golang.org/x/sync/singleflight"
)

const (
	readModelKey  = "devices"
	allCategories = "all"

	sharedRefreshTimeout = 10 * time.Minute
)

type RepositoryAPI interface {
	Archive(ctx context.Context, asset *assetDatamodel.Asset) error
	List(ctx context.Context) ([]*assetDatamodel.Asset, error)
	Active(ctx context.Context) ([]*assetDatamodel.Asset, error)
	GetByID(ctx context.Context, id int64) (*assetDatamodel.Asset, error)
}

type ServiceAPI interface {
	Refresh(ctx context.Context) (*RefreshSummary, error)
	RefreshCategory(ctx context.Context, category string) (*RefreshSummary, error)
	ReadModel(ctx context.Context) (*ReadModel, error)
	Devices(ctx context.Context) ([]Device, error)
	Device(ctx context.Context, id int64) (Device, error)
}

type RefreshSummary struct {
	Category string         `json:"category"`
	Archived int            `json:"archived"`
	Failed   int            `json:"failed"`
	ByType   map[string]int `json:"by_type"`
	Errors   []string       `json:"errors,omitempty"`
}

type Service struct {
	client    ClientAPI
	repo      RepositoryAPI
	events    eventlog.Recorder
	publisher events.Publisher
	cache     cache.Cache[string, *ReadModel]
	group     singleflight.Group
	logger    *slog.Logger
	now       func() time.Time
}

var _ ServiceAPI = (*Service)(nil)

func NewService(client ClientAPI, repo RepositoryAPI, recorder eventlog.Recorder, publisher events.Publisher, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{
		client:    client,
		repo:      repo,
		events:    recorder,
		publisher: publisher,
		cache:     cache.NewTTL[string, *ReadModel](cacheTTL),
		logger:    logger,
		now:       time.Now,
	}
}

// Subscribe drops the read model whenever a refresh archived something.
func (s *Service) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeAssetsRefreshed, func(ctx context.Context, event events.Event) error {
		s.cache.InvalidateAll()
		return nil
	})
}

func (s *Service) Refresh(ctx context.Context) (*RefreshSummary, error) {
	return s.refreshShared(ctx, allCategories, ItemTypes, nil)
}

// RefreshCategory refreshes one logical category. Computer categories walk
// every computer and keep those whose name maps onto the category.
func (s *Service) RefreshCategory(ctx context.Context, category string) (*RefreshSummary, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	itemtype, ok := categoryItemType[category]
	if !ok {
		return nil, internal.NewValidationFieldError("category", "unknown asset category", internal.ErrCodeValidationFailed)
	}

	var keep func(*Record) bool
	if itemtype == ItemComputer {
		keep = func(r *Record) bool { return computerCategory(r.Type) == category }
	}
	return s.refreshShared(ctx, category, []string{itemtype}, keep)
}

func (s *Service) refreshShared(ctx context.Context, category string, itemtypes []string, keep func(*Record) bool) (*RefreshSummary, error) {
	ch := s.group.DoChan(category, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedRefreshTimeout)
		defer cancel()
		return s.refresh(shared, category, itemtypes, keep)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*RefreshSummary), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) refresh(ctx context.Context, category string, itemtypes []string, keep func(*Record) bool) (*RefreshSummary, error) {
	summary := &RefreshSummary{Category: category, ByType: map[string]int{}}
	enricher := NewEnricher(s.client, s.logger)

	for _, itemtype := range itemtypes {
		items, err := s.client.Items(ctx, itemtype)
		if err != nil {
			s.logger.Error("failed to fetch glpi items", "itemtype", itemtype, "error", err)
			s.events.Record(ctx, eventlog.SourceGLPI, eventlog.SeverityError, "system", fmt.Sprintf("Error fetching %s: %v", itemtype, err))
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", itemtype, err))
			continue
		}

		for _, item := range items {
			enricher.Enrich(ctx, itemtype, item)
			rec, err := NewRecord(itemtype, item)
			if err != nil || rec.Name == "" {
				s.logger.Warn("skipping malformed glpi item", "itemtype", itemtype, "id", item.String("id"), "error", err)
				summary.Failed++
				metrics.AssetIngested(itemtype, false)
				continue
			}
			if keep != nil && !keep(rec) {
				continue
			}
			if err := s.repo.Archive(ctx, ToDataModel(rec, s.now().UTC())); err != nil {
				s.logger.Error("failed to archive asset", "name", rec.Name, "error", err)
				summary.Failed++
				metrics.AssetIngested(itemtype, false)
				continue
			}
			summary.Archived++
			summary.ByType[itemtype]++
			metrics.AssetIngested(itemtype, true)
		}
	}

	if len(summary.Errors) == len(itemtypes) {
		return nil, internal.NewExternalError("asset service unavailable", errors.New(strings.Join(summary.Errors, "; ")))
	}

	s.events.Record(ctx, eventlog.SourceGLPI, eventlog.SeverityInfo, "system",
		fmt.Sprintf("Asset refresh (%s) complete: %d archived, %d failed", category, summary.Archived, summary.Failed))
	if err := s.publisher.PublishSync(ctx, events.NewAssetsRefreshedEvent(category, summary.Archived, summary.Failed)); err != nil {
		s.logger.Warn("failed to publish assets refreshed event", "error", err)
	}
	return summary, nil
}

// ReadModel serves the categorized view, rebuilt from storage on a miss.
func (s *Service) ReadModel(ctx context.Context) (*ReadModel, error) {
	if m, ok := s.cache.Get(readModelKey); ok {
		return m, nil
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	m := BuildReadModel(rows)
	s.cache.Set(readModelKey, m)
	return m, nil
}

// Devices lists active assets by name.
func (s *Service) Devices(ctx context.Context) ([]Device, error) {
	rows, err := s.repo.Active(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Device, 0, len(rows))
	for _, row := range rows {
		out = append(out, DeviceFromDataModel(row))
	}
	return out, nil
}

func (s *Service) Device(ctx context.Context, id int64) (Device, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, internal.ErrDeviceNotFound
	}
	return DeviceFromDataModel(row), nil
}
