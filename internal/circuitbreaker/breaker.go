package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Calls pass through, outcomes feed the window
	StateOpen                  // Calls are short-circuited
	StateHalfOpen              // A limited number of trial calls pass through
)

var (
	// ErrOpenState is returned without invoking the guarded function.
	ErrOpenState = errors.New("circuit breaker is open")
	// ErrTooManyTrialCalls is returned in HALF_OPEN once every trial slot is taken.
	ErrTooManyTrialCalls = fmt.Errorf("%w: half-open trial calls exhausted", ErrOpenState)
)

const (
	defaultWindowSize    = 10
	defaultFailureRatio  = 0.5
	defaultCoolDown      = 10 * time.Second
	defaultHalfOpenCalls = 1
)

// Settings configures a single breaker.
type Settings struct {
	Name string
	// WindowSize is the number of most recent outcomes considered in CLOSED.
	WindowSize int
	// MinCalls is the number of outcomes required before the ratio is evaluated.
	MinCalls int
	// FailureRatio trips the breaker when failures/calls reaches it.
	FailureRatio float64
	// CoolDown is how long the breaker stays OPEN before allowing trials.
	CoolDown time.Duration
	// HalfOpenCalls is the number of concurrent trial calls allowed in HALF_OPEN.
	HalfOpenCalls int
	// OnStateChange is invoked after every transition, outside the breaker lock.
	OnStateChange func(name string, from, to State)
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.WindowSize <= 0 {
		s.WindowSize = defaultWindowSize
	}
	if s.MinCalls <= 0 || s.MinCalls > s.WindowSize {
		s.MinCalls = s.WindowSize
	}
	if s.FailureRatio <= 0 || s.FailureRatio > 1 {
		s.FailureRatio = defaultFailureRatio
	}
	if s.CoolDown <= 0 {
		s.CoolDown = defaultCoolDown
	}
	if s.HalfOpenCalls <= 0 {
		s.HalfOpenCalls = defaultHalfOpenCalls
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	return s
}

// Counts is a point-in-time view of a breaker.
type Counts struct {
	State          State
	WindowCalls    int
	WindowFailures int
	TrialsInFlight int
	Rejected       uint64
}

type transition struct {
	from, to State
}

// CircuitBreaker guards one downstream dependency and is shared by every
// caller of that dependency. All state lives behind a single mutex; outcomes
// are tagged with the generation they were admitted in so that a call which
// started before a transition cannot influence the state that follows it.
type CircuitBreaker struct {
	mutex          sync.Mutex
	settings       Settings
	state          State
	generation     uint64
	window         *outcomeWindow
	openedAt       time.Time
	trialsInFlight int
	rejected       uint64
	pending        []transition
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	settings = settings.withDefaults()
	return &CircuitBreaker{
		settings: settings,
		state:    StateClosed,
		window:   newOutcomeWindow(settings.WindowSize),
	}
}

// Name identifies the guarded dependency.
func (cb *CircuitBreaker) Name() string {
	return cb.settings.Name
}

// Call runs fn if the breaker admits it and records the outcome. A non-nil
// error from fn counts as a failure and is returned unchanged. When the
// breaker rejects the call, fn is not invoked and ErrOpenState (or
// ErrTooManyTrialCalls) is returned.
func (cb *CircuitBreaker) Call(fn func() error) error {
	generation, err := cb.beforeCall()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterCall(generation, false)
			panic(r)
		}
	}()

	err = fn()
	cb.afterCall(generation, err == nil)
	return err
}

// Execute is Call for functions returning a value.
func Execute[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var result T
	err := cb.Call(func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.unlockAndNotify()

	state, _ := cb.currentState(cb.settings.Clock())
	return state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mutex.Lock()
	defer cb.unlockAndNotify()

	state, _ := cb.currentState(cb.settings.Clock())
	return Counts{
		State:          state,
		WindowCalls:    cb.window.calls(),
		WindowFailures: cb.window.failures,
		TrialsInFlight: cb.trialsInFlight,
		Rejected:       cb.rejected,
	}
}

// Reset forces the breaker back to CLOSED with an empty window.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.unlockAndNotify()

	cb.setState(StateClosed, cb.settings.Clock())
}

func (cb *CircuitBreaker) beforeCall() (uint64, error) {
	cb.mutex.Lock()
	defer cb.unlockAndNotify()

	state, generation := cb.currentState(cb.settings.Clock())

	switch state {
	case StateOpen:
		cb.rejected++
		return generation, ErrOpenState
	case StateHalfOpen:
		if cb.trialsInFlight >= cb.settings.HalfOpenCalls {
			cb.rejected++
			return generation, ErrTooManyTrialCalls
		}
		cb.trialsInFlight++
	}

	return generation, nil
}

func (cb *CircuitBreaker) afterCall(generation uint64, success bool) {
	cb.mutex.Lock()
	defer cb.unlockAndNotify()

	now := cb.settings.Clock()
	state, current := cb.currentState(now)
	if generation != current {
		return
	}

	switch state {
	case StateClosed:
		cb.window.record(success)
		if !success && cb.window.tripped(cb.settings.MinCalls, cb.settings.FailureRatio) {
			cb.setState(StateOpen, now)
		}
	case StateHalfOpen:
		if success {
			cb.setState(StateClosed, now)
		} else {
			cb.setState(StateOpen, now)
		}
	}
}

// currentState promotes OPEN to HALF_OPEN once the cool-down has elapsed.
func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.settings.CoolDown {
		cb.setState(StateHalfOpen, now)
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(to State, now time.Time) {
	from := cb.state
	cb.state = to
	cb.generation++
	cb.window.reset()
	cb.trialsInFlight = 0

	if to == StateOpen {
		cb.openedAt = now
	}

	if from != to {
		cb.pending = append(cb.pending, transition{from: from, to: to})
	}
}

func (cb *CircuitBreaker) unlockAndNotify() {
	pending := cb.pending
	cb.pending = nil
	cb.mutex.Unlock()

	if cb.settings.OnStateChange == nil {
		return
	}
	for _, t := range pending {
		cb.settings.OnStateChange(cb.settings.Name, t.from, t.to)
	}
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}
