package logs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/opsboard/internal/core/metrics"
)

type bufferEntry struct {
	payload   *Payload
	fetchedAt time.Time
	expiresAt time.Time
}

// Buffer keeps the latest payload per range in minutes. Entries expire ttl
// after they were added; Run sweeps expired entries in the background.
type Buffer struct {
	mu          sync.Mutex
	entries     map[int]bufferEntry
	lastRefresh time.Time
	latest      *Payload
	ttl         time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func NewBuffer(ttl time.Duration, logger *slog.Logger) *Buffer {
	return &Buffer{
		entries: make(map[int]bufferEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock replaces the time source. Tests only.
func (b *Buffer) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (b *Buffer) Now() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now()
}

func (b *Buffer) Add(rangeMinutes int, payload *Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.entries[rangeMinutes] = bufferEntry{payload: payload, fetchedAt: now, expiresAt: now.Add(b.ttl)}
	b.lastRefresh = now
	b.latest = payload
}

// Get returns the payload for rangeMinutes, evicting it when expired.
func (b *Buffer) Get(rangeMinutes int) (*Payload, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[rangeMinutes]
	if !ok {
		metrics.LogBufferLookup("miss")
		return nil, false
	}
	if !b.now().Before(e.expiresAt) {
		delete(b.entries, rangeMinutes)
		metrics.LogBufferLookup("expired")
		return nil, false
	}
	metrics.LogBufferLookup("hit")
	return e.payload, true
}

// LastRefresh is the time of the most recent Add across all ranges, zero
// when nothing was fetched yet.
func (b *Buffer) LastRefresh() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRefresh
}

func (b *Buffer) Latest() *Payload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// Sweep evicts expired entries and returns how many were removed.
func (b *Buffer) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	removed := 0
	for r, e := range b.entries {
		if !now.Before(e.expiresAt) {
			delete(b.entries, r)
			removed++
		}
	}
	return removed
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Run sweeps every interval until ctx is done.
func (b *Buffer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.Sweep(); n > 0 {
				b.logger.Debug("log buffer swept", "evicted", n)
			}
		}
	}
}
