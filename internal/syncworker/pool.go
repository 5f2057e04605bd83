package syncworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/frahmantamala/opsboard/internal/eventlog"
)

var (
	ErrQueueFull  = errors.New("sync queue full")
	ErrUnknownJob = errors.New("unknown sync job")
	ErrStopped    = errors.New("sync pool stopped")
)

// Runner performs one refresh.
type Runner func(ctx context.Context) error

type Config struct {
	Workers   int
	QueueSize int
	// JobTimeout bounds a single run; zero means no bound.
	JobTimeout time.Duration
}

func ConfigFrom(cfg internal.SyncConfig) Config {
	return Config{Workers: cfg.Workers, QueueSize: cfg.QueueSize, JobTimeout: 5 * time.Minute}
}

// Pool runs refresh jobs. A kind that is already queued or running is not
// queued again.
type Pool struct {
	runners map[string]Runner
	events  eventlog.Recorder
	logger  *slog.Logger

	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	jobTimeout time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once

	mu      sync.Mutex
	pending map[string]bool
	stats   map[string]*Stats
}

// Stats is the outcome history of one job kind.
type Stats struct {
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

func NewPool(cfg Config, runners map[string]Runner, events eventlog.Recorder, logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.Workers
	if maxWorkers <= 0 {
		maxWorkers = 3
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}

	return &Pool{
		runners:    runners,
		events:     events,
		logger:     logger,
		jobQueue:   make(chan Job, queueSize),
		workerPool: make(chan chan Job, maxWorkers),
		maxWorkers: maxWorkers,
		jobTimeout: cfg.JobTimeout,
		ctx:        ctx,
		cancel:     cancel,
		pending:    make(map[string]bool),
		stats:      make(map[string]*Stats),
	}
}

// Start launches the workers and the dispatcher. Calling it again is a no-op.
func (p *Pool) Start() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.process)
		}

		p.wg.Add(1)
		go p.dispatch()

		p.logger.Info("sync worker pool started",
			"max_workers", p.maxWorkers,
			"queue_size", cap(p.jobQueue),
			"jobs", p.kinds())
	})
}

func (p *Pool) kinds() []string {
	out := make([]string, 0, len(p.runners))
	for k := range p.runners {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p *Pool) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					p.logger.Info("dispatcher shutting down")
					return
				}
			case <-p.ctx.Done():
				p.logger.Info("dispatcher shutting down")
				return
			}
		case <-p.ctx.Done():
			p.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// Enqueue queues one run of kind. It reports false when that kind is
// already queued or running.
func (p *Pool) Enqueue(kind string) (bool, error) {
	if _, ok := p.runners[kind]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownJob, kind)
	}
	if p.ctx.Err() != nil {
		return false, ErrStopped
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[kind] {
		p.logger.Debug("sync job already pending", "kind", kind)
		return false, nil
	}

	select {
	case p.jobQueue <- Job{Kind: kind, EnqueuedAt: time.Now()}:
		p.pending[kind] = true
		return true, nil
	default:
		p.logger.Warn("sync queue full, dropping job", "kind", kind, "queue_capacity", cap(p.jobQueue))
		return false, ErrQueueFull
	}
}

// Schedule enqueues kind immediately and then every interval until the
// pool shuts down.
func (p *Pool) Schedule(kind string, interval time.Duration) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if _, err := p.Enqueue(kind); err != nil && !errors.Is(err, ErrStopped) {
				p.logger.Error("failed to schedule sync job", "kind", kind, "error", err)
			}
			select {
			case <-ticker.C:
			case <-p.ctx.Done():
				return
			}
		}
	}()
	p.logger.Info("sync job scheduled", "kind", kind, "interval", interval.String())
}

func (p *Pool) process(job Job) {
	defer func() {
		p.mu.Lock()
		delete(p.pending, job.Kind)
		p.mu.Unlock()
	}()

	ctx := p.ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := p.run(ctx, job)
	p.record(job.Kind, start, err)

	if err != nil {
		if p.ctx.Err() != nil {
			p.logger.Info("sync job cancelled", "kind", job.Kind)
			return
		}
		p.logger.Error("sync job failed", "kind", job.Kind, "duration", time.Since(start).String(), "error", err)
		p.events.Record(p.ctx, eventlog.SourceSync, eventlog.SeverityError, "system", fmt.Sprintf("Scheduled %s refresh failed: %v", job.Kind, err))
		return
	}
	p.logger.Info("sync job finished", "kind", job.Kind, "duration", time.Since(start).String(), "waited", start.Sub(job.EnqueuedAt).String())
}

func (p *Pool) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s job: %v", job.Kind, r)
		}
	}()
	return p.runners[job.Kind](ctx)
}

func (p *Pool) record(kind string, at time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.stats[kind]
	if !ok {
		st = &Stats{}
		p.stats[kind] = st
	}
	st.Runs++
	st.LastRun = at
	st.LastError = ""
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	}
}

// Stats returns a copy of the per-kind outcome counters.
func (p *Pool) Stats() map[string]Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Stats, len(p.stats))
	for k, v := range p.stats {
		out[k] = *v
	}
	return out
}

func (p *Pool) Shutdown() {
	p.logger.Info("shutting down sync worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("sync worker pool shutdown complete")
}
