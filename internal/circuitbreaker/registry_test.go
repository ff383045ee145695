package circuitbreaker_test

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/item-enricher/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry(circuitbreaker.Settings{
			WindowSize:   2,
			MinCalls:     2,
			FailureRatio: 1,
			CoolDown:     30 * time.Second,
		})
	})

	Describe("Get", func() {
		It("should create a new breaker for an unknown dependency", func() {
			cb := registry.Get("enrichment-api")
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Name()).To(Equal("enrichment-api"))
		})

		It("should return the same breaker for the same dependency", func() {
			Expect(registry.Get("enrichment-api")).To(BeIdenticalTo(registry.Get("enrichment-api")))
		})

		It("should return different breakers for different dependencies", func() {
			Expect(registry.Get("enrichment-api")).NotTo(BeIdenticalTo(registry.Get("pricing-api")))
		})

		It("should use the registry settings for new breakers", func() {
			cb := registry.Get("enrichment-api")
			_ = cb.Call(func() error { return errors.New("down") })
			_ = cb.Call(func() error { return errors.New("down") })
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Describe("Concurrent access", func() {
		It("should hand out a single breaker under concurrent Get calls", func() {
			const goroutines = 100

			var wg sync.WaitGroup
			wg.Add(goroutines)
			seen := make(chan *circuitbreaker.CircuitBreaker, goroutines)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					seen <- registry.Get("enrichment-api")
				}()
			}

			wg.Wait()
			close(seen)

			first := <-seen
			for cb := range seen {
				Expect(cb).To(BeIdenticalTo(first))
			}
			Expect(registry.Stats()).To(HaveLen(1))
		})
	})

	Describe("Reset", func() {
		It("should close every breaker while keeping references valid", func() {
			cb := registry.Get("enrichment-api")
			_ = cb.Call(func() error { return errors.New("down") })
			_ = cb.Call(func() error { return errors.New("down") })
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			registry.Reset()

			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(registry.Get("enrichment-api")).To(BeIdenticalTo(cb))
		})
	})

	Describe("Stats", func() {
		It("should return the state of all breakers", func() {
			registry.Get("enrichment-api")
			down := registry.Get("pricing-api")
			_ = down.Call(func() error { return errors.New("down") })
			_ = down.Call(func() error { return errors.New("down") })

			stats := registry.Stats()
			Expect(stats).To(HaveLen(2))
			Expect(stats["enrichment-api"]).To(Equal(circuitbreaker.StateClosed))
			Expect(stats["pricing-api"]).To(Equal(circuitbreaker.StateOpen))
		})
	})
})
