package cache_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/item-enricher/internal/cache"
	"github.com/angeloszaimis/item-enricher/internal/record"
)

var _ = Describe("MemoryBackend", func() {
	var (
		ctx     context.Context
		clock   *fakeClock
		backend *cache.MemoryBackend
		item    record.Record
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = newFakeClock()
		backend = cache.NewMemoryBackend(clock.Now)
		item = record.Record{ID: 1, Name: "cached", Value: 2.5}
	})

	It("should report a miss for unknown identifiers", func() {
		_, ok, err := backend.Get(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("should return stored records within the TTL", func() {
		Expect(backend.Set(ctx, item, time.Minute)).To(Succeed())
		clock.Advance(59 * time.Second)

		got, ok, err := backend.Get(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(item))
	})

	It("should lazily evict expired entries on access", func() {
		Expect(backend.Set(ctx, item, time.Minute)).To(Succeed())
		clock.Advance(time.Minute)

		Expect(backend.Len()).To(Equal(1))

		_, ok, err := backend.Get(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(backend.Len()).To(BeZero())
	})

	It("should restart the TTL when an entry is overwritten", func() {
		Expect(backend.Set(ctx, item, time.Minute)).To(Succeed())
		clock.Advance(50 * time.Second)

		updated := item
		updated.Value = 3
		Expect(backend.Set(ctx, updated, time.Minute)).To(Succeed())
		clock.Advance(50 * time.Second)

		got, ok, _ := backend.Get(ctx, 1)
		Expect(ok).To(BeTrue())
		Expect(got.Value).To(Equal(3.0))
	})

	It("should delete entries", func() {
		Expect(backend.Set(ctx, item, time.Minute)).To(Succeed())
		Expect(backend.Delete(ctx, 1)).To(Succeed())

		_, ok, _ := backend.Get(ctx, 1)
		Expect(ok).To(BeFalse())
	})

	It("should always be reachable", func() {
		Expect(backend.Ping(ctx)).To(Succeed())
	})

	Describe("Entry", func() {
		It("should never expire with a zero TTL", func() {
			entry := cache.Entry{Record: item, InsertedAt: clock.Now()}
			Expect(entry.Expired(clock.Now().Add(24 * time.Hour))).To(BeFalse())
		})
	})
})
