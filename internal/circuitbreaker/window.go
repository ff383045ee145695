package circuitbreaker

// outcomeWindow is a fixed-size ring of the most recent call outcomes.
// It is not safe for concurrent use; the owning breaker serializes access.
type outcomeWindow struct {
	outcomes []bool // true means failure
	next     int
	filled   int
	failures int
}

func newOutcomeWindow(size int) *outcomeWindow {
	return &outcomeWindow{outcomes: make([]bool, size)}
}

func (w *outcomeWindow) record(success bool) {
	failed := !success

	if w.filled == len(w.outcomes) {
		if w.outcomes[w.next] {
			w.failures--
		}
	} else {
		w.filled++
	}

	w.outcomes[w.next] = failed
	if failed {
		w.failures++
	}
	w.next = (w.next + 1) % len(w.outcomes)
}

func (w *outcomeWindow) calls() int {
	return w.filled
}

func (w *outcomeWindow) tripped(minCalls int, ratio float64) bool {
	if w.filled < minCalls {
		return false
	}
	return float64(w.failures)/float64(w.filled) >= ratio
}

func (w *outcomeWindow) reset() {
	clear(w.outcomes)
	w.next = 0
	w.filled = 0
	w.failures = 0
}
