package events_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/opsboard/internal/core/events"
	"github.com/frahmantamala/opsboard/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		bus = events.NewEventBus(logger.Discard())
	})

	It("delivers synchronously to every subscriber in order", func() {
		var seen []string
		bus.Subscribe(events.EventTypeCatalogChanged, func(ctx context.Context, e events.Event) error {
			seen = append(seen, "first:"+e.(*events.CatalogChangedEvent).Role)
			return nil
		})
		bus.Subscribe(events.EventTypeCatalogChanged, func(ctx context.Context, e events.Event) error {
			seen = append(seen, "second")
			return nil
		})

		err := bus.PublishSync(context.Background(), events.NewCatalogChangedEvent("viewer", "grant"))
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]string{"first:viewer", "second"}))
	})

	It("keeps running handlers after one fails and reports the failure", func() {
		var calls int32
		bus.Subscribe(events.EventTypeAssetsRefreshed, func(ctx context.Context, e events.Event) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("boom")
		})
		bus.Subscribe(events.EventTypeAssetsRefreshed, func(ctx context.Context, e events.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})

		err := bus.PublishSync(context.Background(), events.NewAssetsRefreshedEvent("all", 3, 0))
		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))
	})

	It("delivers asynchronously even when the caller context is cancelled", func() {
		var calls int32
		bus.Subscribe(events.EventTypeAssetsRefreshed, func(ctx context.Context, e events.Event) error {
			if ctx.Err() == nil {
				atomic.AddInt32(&calls, 1)
			}
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		Expect(bus.Publish(ctx, events.NewAssetsRefreshedEvent("servers", 1, 0))).To(Succeed())
		cancel()

		Eventually(func() int32 { return atomic.LoadInt32(&calls) }, time.Second).Should(Equal(int32(1)))
	})

	It("ignores events nobody subscribed to", func() {
		Expect(bus.PublishSync(context.Background(), events.NewCatalogChangedEvent("", "boot"))).To(Succeed())
	})
})
