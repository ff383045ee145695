package circuitbreaker_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/item-enricher/internal/circuitbreaker"
)

var errBoom = errors.New("boom")

func succeed() error { return nil }
func fail() error    { return errBoom }

var _ = Describe("CircuitBreaker", func() {
	var (
		cb    *circuitbreaker.CircuitBreaker
		clock *fakeClock
	)

	newBreaker := func(mutate func(*circuitbreaker.Settings)) *circuitbreaker.CircuitBreaker {
		settings := circuitbreaker.Settings{
			Name:          "enrichment-api",
			WindowSize:    4,
			MinCalls:      4,
			FailureRatio:  0.5,
			CoolDown:      10 * time.Second,
			HalfOpenCalls: 1,
			Clock:         clock.Now,
		}
		if mutate != nil {
			mutate(&settings)
		}
		return circuitbreaker.NewCircuitBreaker(settings)
	}

	trip := func() {
		for i := 0; i < 4; i++ {
			Expect(cb.Call(fail)).To(MatchError(errBoom))
		}
		Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
	}

	BeforeEach(func() {
		clock = newFakeClock()
		cb = newBreaker(nil)
	})

	Describe("NewCircuitBreaker", func() {
		It("should create a circuit breaker in closed state", func() {
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Name()).To(Equal("enrichment-api"))
		})

		It("should apply defaults for zero settings", func() {
			cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{})
			for i := 0; i < 9; i++ {
				Expect(cb.Call(fail)).To(HaveOccurred())
			}
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Call(fail)).To(HaveOccurred())
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Context("when in CLOSED state", func() {
		It("should pass calls through and return their errors unchanged", func() {
			Expect(cb.Call(succeed)).To(Succeed())
			Expect(cb.Call(fail)).To(MatchError(errBoom))
		})

		It("should not evaluate the ratio before the minimum number of calls", func() {
			for i := 0; i < 3; i++ {
				Expect(cb.Call(fail)).To(HaveOccurred())
			}
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should open once the failure ratio is reached", func() {
			Expect(cb.Call(succeed)).To(Succeed())
			Expect(cb.Call(succeed)).To(Succeed())
			Expect(cb.Call(fail)).To(HaveOccurred())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Call(fail)).To(HaveOccurred())
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should only consider the most recent outcomes", func() {
			cb = newBreaker(func(s *circuitbreaker.Settings) { s.FailureRatio = 0.75 })

			Expect(cb.Call(fail)).To(HaveOccurred())
			Expect(cb.Call(fail)).To(HaveOccurred())
			Expect(cb.Call(succeed)).To(Succeed())
			Expect(cb.Call(succeed)).To(Succeed())
			// The two failures slide out of the window one by one.
			Expect(cb.Call(succeed)).To(Succeed())
			Expect(cb.Call(fail)).To(HaveOccurred())
			Expect(cb.Counts().WindowFailures).To(Equal(1))
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Context("when in OPEN state", func() {
		BeforeEach(trip)

		It("should short-circuit without invoking the function", func() {
			var invoked int32
			err := cb.Call(func() error {
				atomic.AddInt32(&invoked, 1)
				return nil
			})
			Expect(err).To(MatchError(circuitbreaker.ErrOpenState))
			Expect(atomic.LoadInt32(&invoked)).To(BeZero())
			Expect(cb.Counts().Rejected).To(Equal(uint64(1)))
		})

		It("should remain OPEN before the cool-down elapses", func() {
			clock.Advance(9 * time.Second)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should transition to HALF_OPEN after the cool-down", func() {
			clock.Advance(10 * time.Second)
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})
	})

	Context("when in HALF_OPEN state", func() {
		BeforeEach(func() {
			trip()
			clock.Advance(10 * time.Second)
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})

		It("should allow exactly one trial call at a time", func() {
			release := make(chan struct{})
			started := make(chan struct{})
			done := make(chan error, 1)

			go func() {
				done <- cb.Call(func() error {
					close(started)
					<-release
					return nil
				})
			}()
			Eventually(started).Should(BeClosed())

			var invoked int32
			err := cb.Call(func() error {
				atomic.AddInt32(&invoked, 1)
				return nil
			})
			Expect(err).To(MatchError(circuitbreaker.ErrTooManyTrialCalls))
			Expect(err).To(MatchError(circuitbreaker.ErrOpenState))
			Expect(atomic.LoadInt32(&invoked)).To(BeZero())

			close(release)
			Eventually(done).Should(Receive(BeNil()))
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should close and clear the window on a successful trial", func() {
			Expect(cb.Call(succeed)).To(Succeed())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Counts().WindowCalls).To(BeZero())
		})

		It("should reopen and restart the cool-down on a failed trial", func() {
			Expect(cb.Call(fail)).To(MatchError(errBoom))
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			clock.Advance(9 * time.Second)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
			clock.Advance(1 * time.Second)
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})

		It("should admit as many trials as configured", func() {
			cb = newBreaker(func(s *circuitbreaker.Settings) { s.HalfOpenCalls = 2 })
			trip()
			clock.Advance(10 * time.Second)

			release := make(chan struct{})
			var wg sync.WaitGroup
			var admitted int32
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = cb.Call(func() error {
						atomic.AddInt32(&admitted, 1)
						<-release
						return nil
					})
				}()
			}
			Eventually(func() int32 { return atomic.LoadInt32(&admitted) }).Should(Equal(int32(2)))
			Expect(cb.Call(succeed)).To(MatchError(circuitbreaker.ErrTooManyTrialCalls))

			close(release)
			wg.Wait()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("stale outcomes", func() {
		It("should ignore an outcome admitted before a transition", func() {
			release := make(chan struct{})
			started := make(chan struct{})
			done := make(chan error, 1)

			go func() {
				done <- cb.Call(func() error {
					close(started)
					<-release
					return nil
				})
			}()
			Eventually(started).Should(BeClosed())

			trip()
			close(release)
			Eventually(done).Should(Receive(BeNil()))

			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should still record outcomes of calls whose callers gave up", func() {
			results := make(chan error, 4)
			for i := 0; i < 4; i++ {
				go func() {
					results <- cb.Call(func() error {
						time.Sleep(5 * time.Millisecond)
						return errBoom
					})
				}()
			}
			// Nobody reads the results; the breaker still trips.
			Eventually(cb.State).Should(Equal(circuitbreaker.StateOpen))
		})
	})

	Describe("Execute", func() {
		It("should return the function's value", func() {
			v, err := circuitbreaker.Execute(cb, func() (int, error) { return 42, nil })
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(42))
		})

		It("should return the zero value when short-circuited", func() {
			trip()
			v, err := circuitbreaker.Execute(cb, func() (string, error) { return "never", nil })
			Expect(err).To(MatchError(circuitbreaker.ErrOpenState))
			Expect(v).To(BeEmpty())
		})
	})

	Describe("panics", func() {
		It("should record a panic as a failure and re-panic", func() {
			cb = newBreaker(func(s *circuitbreaker.Settings) { s.MinCalls = 1; s.FailureRatio = 1 })
			Expect(func() {
				_ = cb.Call(func() error { panic("kaboom") })
			}).To(PanicWith("kaboom"))
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Describe("OnStateChange", func() {
		It("should report every transition in order", func() {
			var mutex sync.Mutex
			var seen []string
			cb = newBreaker(func(s *circuitbreaker.Settings) {
				s.OnStateChange = func(name string, from, to circuitbreaker.State) {
					mutex.Lock()
					defer mutex.Unlock()
					seen = append(seen, name+":"+from.String()+"->"+to.String())
				}
			})

			trip()
			clock.Advance(10 * time.Second)
			Expect(cb.Call(succeed)).To(Succeed())

			mutex.Lock()
			defer mutex.Unlock()
			Expect(seen).To(Equal([]string{
				"enrichment-api:CLOSED->OPEN",
				"enrichment-api:OPEN->HALF_OPEN",
				"enrichment-api:HALF_OPEN->CLOSED",
			}))
		})

		It("should allow the listener to read breaker state", func() {
			var observed circuitbreaker.State
			cb = newBreaker(func(s *circuitbreaker.Settings) {
				s.OnStateChange = func(string, circuitbreaker.State, circuitbreaker.State) {
					observed = cb.State()
				}
			})
			trip()
			Expect(observed).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Describe("Reset", func() {
		It("should close an open breaker", func() {
			trip()
			cb.Reset()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Call(succeed)).To(Succeed())
		})
	})

	Describe("with the real clock", func() {
		It("should transition to HALF_OPEN after the cool-down", func() {
			cb = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
				WindowSize:   3,
				MinCalls:     3,
				FailureRatio: 1,
				CoolDown:     100 * time.Millisecond,
			})
			for i := 0; i < 3; i++ {
				_ = cb.Call(fail)
			}
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			time.Sleep(150 * time.Millisecond)
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})
	})

	Describe("concurrent callers", func() {
		It("should keep a consistent state under contention", func() {
			cb = newBreaker(func(s *circuitbreaker.Settings) {
				s.WindowSize = 20
				s.MinCalls = 10
				s.CoolDown = time.Millisecond
				s.Clock = time.Now
			})

			const goroutines = 50
			var wg sync.WaitGroup
			wg.Add(goroutines)
			for i := 0; i < goroutines; i++ {
				go func(i int) {
					defer wg.Done()
					for j := 0; j < 20; j++ {
						if (i+j)%2 == 0 {
							_ = cb.Call(fail)
						} else {
							_ = cb.Call(succeed)
						}
					}
				}(i)
			}
			wg.Wait()

			counts := cb.Counts()
			Expect(counts.State).To(BeElementOf(
				circuitbreaker.StateClosed,
				circuitbreaker.StateOpen,
				circuitbreaker.StateHalfOpen,
			))
			Expect(counts.WindowFailures).To(BeNumerically("<=", counts.WindowCalls))
			Expect(counts.TrialsInFlight).To(BeNumerically("<=", 1))
		})
	})

	Describe("State.String", func() {
		It("should return correct string representation", func() {
			Expect(circuitbreaker.StateClosed.String()).To(Equal("CLOSED"))
			Expect(circuitbreaker.StateOpen.String()).To(Equal("OPEN"))
			Expect(circuitbreaker.StateHalfOpen.String()).To(Equal("HALF_OPEN"))
			Expect(circuitbreaker.State(99).String()).To(Equal("UNKNOWN"))
		})
	})
})
