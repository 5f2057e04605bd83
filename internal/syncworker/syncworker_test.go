package syncworker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/opsboard/internal/assets"
	"github.com/frahmantamala/opsboard/internal/core/i18n"
	"github.com/frahmantamala/opsboard/internal/core/result"
	"github.com/frahmantamala/opsboard/internal/logs"
	"github.com/frahmantamala/opsboard/internal/monitoring"
	"github.com/frahmantamala/opsboard/internal/syncworker"
	"github.com/frahmantamala/opsboard/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSyncWorker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "SyncWorker Suite")
}

type fakeRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeRecorder) Record(_ context.Context, source, _, _, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, source+": "+message)
}

func (f *fakeRecorder) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

var _ = Describe("Pool", func() {
	var recorder *fakeRecorder

	BeforeEach(func() {
		recorder = &fakeRecorder{}
	})

	It("runs queued jobs and counts them", func() {
		var runs atomic.Int32
		pool := syncworker.NewPool(syncworker.Config{Workers: 2}, map[string]syncworker.Runner{
			syncworker.JobAssets: func(context.Context) error { runs.Add(1); return nil },
		}, recorder, logger.Discard())
		pool.Start()
		DeferCleanup(pool.Shutdown)

		queued, err := pool.Enqueue(syncworker.JobAssets)
		Expect(err).NotTo(HaveOccurred())
		Expect(queued).To(BeTrue())

		Eventually(runs.Load).Should(BeEquivalentTo(1))
		Eventually(func() int { return pool.Stats()[syncworker.JobAssets].Runs }).Should(Equal(1))
		Expect(recorder.all()).To(BeEmpty())
	})

	It("does not queue a kind that is already pending", func() {
		started := make(chan struct{}, 1)
		release := make(chan struct{})
		pool := syncworker.NewPool(syncworker.Config{Workers: 2}, map[string]syncworker.Runner{
			syncworker.JobLogs: func(context.Context) error {
				started <- struct{}{}
				<-release
				return nil
			},
		}, recorder, logger.Discard())
		pool.Start()
		DeferCleanup(pool.Shutdown)

		Expect(pool.Enqueue(syncworker.JobLogs)).To(BeTrue())
		Eventually(started).Should(Receive())

		queued, err := pool.Enqueue(syncworker.JobLogs)
		Expect(err).NotTo(HaveOccurred())
		Expect(queued).To(BeFalse())

		close(release)
		Eventually(func() int { return pool.Stats()[syncworker.JobLogs].Runs }).Should(Equal(1))
		Eventually(func() bool {
			ok, _ := pool.Enqueue(syncworker.JobLogs)
			return ok
		}).Should(BeTrue())
	})

	It("rejects unknown kinds and a full queue", func() {
		pool := syncworker.NewPool(syncworker.Config{Workers: 1, QueueSize: 1}, map[string]syncworker.Runner{
			syncworker.JobAssets:     func(context.Context) error { return nil },
			syncworker.JobMonitoring: func(context.Context) error { return nil },
		}, recorder, logger.Discard())

		_, err := pool.Enqueue("backups")
		Expect(errors.Is(err, syncworker.ErrUnknownJob)).To(BeTrue())

		// not started, so nothing drains the queue
		Expect(pool.Enqueue(syncworker.JobAssets)).To(BeTrue())
		_, err = pool.Enqueue(syncworker.JobMonitoring)
		Expect(errors.Is(err, syncworker.ErrQueueFull)).To(BeTrue())

		pool.Shutdown()
		_, err = pool.Enqueue(syncworker.JobMonitoring)
		Expect(errors.Is(err, syncworker.ErrStopped)).To(BeTrue())
	})

	It("records failures and survives panics", func() {
		pool := syncworker.NewPool(syncworker.Config{Workers: 1}, map[string]syncworker.Runner{
			syncworker.JobMonitoring: func(context.Context) error { return errors.New("zabbix down") },
			syncworker.JobAssets:     func(context.Context) error { panic("boom") },
		}, recorder, logger.Discard())
		pool.Start()
		DeferCleanup(pool.Shutdown)

		Expect(pool.Enqueue(syncworker.JobMonitoring)).To(BeTrue())
		Expect(pool.Enqueue(syncworker.JobAssets)).To(BeTrue())

		Eventually(func() int { return len(recorder.all()) }).Should(Equal(2))
		Expect(recorder.all()).To(ContainElement("sync: Scheduled monitoring refresh failed: zabbix down"))
		Expect(recorder.all()).To(ContainElement(ContainSubstring("panic in assets job: boom")))

		stats := pool.Stats()
		Expect(stats[syncworker.JobMonitoring].Failures).To(Equal(1))
		Expect(stats[syncworker.JobMonitoring].LastError).To(Equal("zabbix down"))
		Expect(stats[syncworker.JobAssets].Failures).To(Equal(1))
	})

	It("runs scheduled jobs right away and on every tick", func() {
		var runs atomic.Int32
		pool := syncworker.NewPool(syncworker.Config{Workers: 1}, map[string]syncworker.Runner{
			syncworker.JobLogs: func(context.Context) error { runs.Add(1); return nil },
		}, recorder, logger.Discard())
		pool.Start()
		pool.Schedule(syncworker.JobLogs, 20*time.Millisecond)

		Eventually(runs.Load).Should(BeNumerically(">=", 3))
		pool.Shutdown()

		after := runs.Load()
		Consistently(runs.Load, 100*time.Millisecond).Should(Equal(after))
	})

	It("cancels a running job on shutdown", func() {
		started := make(chan struct{}, 1)
		var cancelled atomic.Bool
		pool := syncworker.NewPool(syncworker.Config{Workers: 1}, map[string]syncworker.Runner{
			syncworker.JobAssets: func(ctx context.Context) error {
				started <- struct{}{}
				<-ctx.Done()
				cancelled.Store(true)
				return ctx.Err()
			},
		}, recorder, logger.Discard())
		pool.Start()

		Expect(pool.Enqueue(syncworker.JobAssets)).To(BeTrue())
		Eventually(started).Should(Receive())
		pool.Shutdown()

		Expect(cancelled.Load()).To(BeTrue())
		Expect(recorder.all()).To(BeEmpty())
	})
})

type fakeAssets struct {
	summary *assets.RefreshSummary
	err     error
}

func (f fakeAssets) Refresh(context.Context) (*assets.RefreshSummary, error) {
	return f.summary, f.err
}

type fakeHosts struct {
	res result.Result[[]*monitoring.Host]
}

func (f fakeHosts) Hosts(context.Context, i18n.Locale, string) result.Result[[]*monitoring.Host] {
	return f.res
}

type fakeLogs struct {
	rangeMinutes int
	force        bool
}

func (f *fakeLogs) Fetch(_ context.Context, rangeMinutes int, force bool, _ i18n.Locale) result.Result[*logs.Payload] {
	f.rangeMinutes = rangeMinutes
	f.force = force
	return result.Ok(&logs.Payload{})
}

var _ = Describe("Jobs", func() {
	ctx := context.Background()

	It("fails an asset refresh that archived nothing", func() {
		Expect(syncworker.AssetsJob(fakeAssets{summary: &assets.RefreshSummary{Archived: 4, Failed: 1}})(ctx)).To(Succeed())
		Expect(syncworker.AssetsJob(fakeAssets{summary: &assets.RefreshSummary{Failed: 3}})(ctx)).To(MatchError("no assets archived, 3 failed"))
		Expect(syncworker.AssetsJob(fakeAssets{err: errors.New("glpi down")})(ctx)).To(MatchError("glpi down"))
	})

	It("treats a degraded host list as a failure", func() {
		Expect(syncworker.MonitoringJob(fakeHosts{res: result.Ok([]*monitoring.Host{})})(ctx)).To(Succeed())
		err := syncworker.MonitoringJob(fakeHosts{res: result.Degraded([]*monitoring.Host{}, "timeout")})(ctx)
		Expect(err).To(MatchError("timeout"))
		Expect(syncworker.MonitoringJob(fakeHosts{res: result.Err[[]*monitoring.Host]("")})(ctx)).To(MatchError("error"))
	})

	It("forces the log window", func() {
		f := &fakeLogs{}
		Expect(syncworker.LogsJob(f, 60)(ctx)).To(Succeed())
		Expect(f.rangeMinutes).To(Equal(60))
		Expect(f.force).To(BeTrue())
	})
})
