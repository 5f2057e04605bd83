package syncworker

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/opsboard/internal/assets"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/core/result"
	"github.com/frahmantamala/opsboard/internal/logs"
	"github.com/frahmantamala/opsboard/internal/monitoring"
)

type AssetRefresher interface {
	Refresh(ctx context.Context) (*assets.RefreshSummary, error)
}

type HostLister interface {
	Hosts(ctx context.Context, locale i18n.Locale, view string) result.Result[[]*monitoring.Host]
}

type LogFetcher interface {
	Fetch(ctx context.Context, rangeMinutes int, force bool, locale i18n.Locale) result.Result[*logs.Payload]
}

// AssetsJob walks every asset category and archives what it finds.
func AssetsJob(svc AssetRefresher) Runner {
	return func(ctx context.Context) error {
		summary, err := svc.Refresh(ctx)
		if err != nil {
			return err
		}
		if summary.Archived == 0 && summary.Failed > 0 {
			return fmt.Errorf("no assets archived, %d failed", summary.Failed)
		}
		return nil
	}
}

// MonitoringJob pulls every host so statuses and metrics get archived.
func MonitoringJob(svc HostLister) Runner {
	return func(ctx context.Context) error {
		return resultError(svc.Hosts(ctx, i18n.Default, monitoring.ViewAll))
	}
}

// LogsJob forces a refresh of the given window, bypassing the buffer.
func LogsJob(svc LogFetcher, rangeMinutes int) Runner {
	return func(ctx context.Context) error {
		return resultError(svc.Fetch(ctx, rangeMinutes, true, i18n.Default))
	}
}

// resultError treats a degraded result as a failed refresh: the caller got
// stored data, not fresh data.
func resultError[T any](r result.Result[T]) error {
	if r.IsOK() {
		return nil
	}
	if r.Reason == "" {
		return errors.New(r.Status.String())
	}
	return errors.New(r.Reason)
}
