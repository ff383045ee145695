package healthcheck_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/item-enricher/internal/healthcheck"
	"github.com/angeloszaimis/item-enricher/internal/metrics"
)

// toggle is a probe whose outcome can be flipped from the test.
type toggle struct {
	down  atomic.Bool
	calls atomic.Int64
}

func (t *toggle) probe(context.Context) error {
	t.calls.Add(1)
	if t.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

var _ = Describe("Monitor", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		logger  *slog.Logger
		monitor *healthcheck.Monitor
		store   *toggle
		cache   *toggle
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		monitor = healthcheck.NewMonitor(10*time.Millisecond, logger, nil)
		store = &toggle{}
		cache = &toggle{}
		monitor.Register("store", true, store.probe)
		monitor.Register("cache", false, cache.probe)
	})

	AfterEach(func() {
		cancel()
	})

	It("should report UP before any probe ran", func() {
		report := monitor.Report()
		Expect(report.Status).To(Equal(healthcheck.StatusUp))
		Expect(report.Components).To(BeEmpty())
	})

	It("should report every component as UP when healthy", func() {
		report := monitor.Check(ctx)
		Expect(report.Status).To(Equal(healthcheck.StatusUp))
		Expect(report.Components).To(HaveLen(2))
		Expect(report.Components["store"].Status).To(Equal(healthcheck.StatusUp))
		Expect(report.Components["store"].Critical).To(BeTrue())
	})

	It("should stay UP when only a non-critical component fails", func() {
		cache.down.Store(true)

		report := monitor.Check(ctx)
		Expect(report.Status).To(Equal(healthcheck.StatusUp))
		Expect(report.Components["cache"].Status).To(Equal(healthcheck.StatusDown))
		Expect(report.Components["cache"].Error).To(Equal("connection refused"))
	})

	It("should go DOWN when a critical component fails", func() {
		store.down.Store(true)

		report := monitor.Check(ctx)
		Expect(report.Status).To(Equal(healthcheck.StatusDown))
		Expect(monitor.Report().Status).To(Equal(healthcheck.StatusDown))
	})

	It("should bound slow probes with a timeout", func() {
		monitor.Register("slow", false, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		shortCtx, shortCancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer shortCancel()

		report := monitor.Check(shortCtx)
		Expect(report.Components["slow"].Status).To(Equal(healthcheck.StatusDown))
	})

	Describe("Run", func() {
		It("should probe periodically and pick up recoveries", func() {
			store.down.Store(true)
			go monitor.Run(ctx)

			Eventually(func() string { return monitor.Report().Status }).Should(Equal(healthcheck.StatusDown))

			store.down.Store(false)
			Eventually(func() string { return monitor.Report().Status }).Should(Equal(healthcheck.StatusUp))
			Expect(store.calls.Load()).To(BeNumerically(">=", 2))
		})

		It("should stop when the context is cancelled", func() {
			done := make(chan struct{})
			go func() {
				monitor.Run(ctx)
				close(done)
			}()

			cancel()
			Eventually(done).Should(BeClosed())
		})
	})

	It("should emit health changes to the collector", func() {
		collector := metrics.NewCollector(10, logger)
		collector.Start(ctx)
		observed := healthcheck.NewMonitor(time.Hour, logger, collector)
		observed.Register("store", true, store.probe)
		observed.Register("cache", false, cache.probe)

		cache.down.Store(true)
		observed.Check(ctx)

		Eventually(func() map[string]bool {
			return collector.Snapshot().Components
		}).Should(Equal(map[string]bool{"store": true, "cache": false}))
	})
})
