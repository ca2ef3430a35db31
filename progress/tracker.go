package progress

import "sync"

// Tracker keeps a sequence of progress values non-decreasing and capped at
// Complete. A value lower than the last one is raised to the last one.
type Tracker struct {
	mu   sync.Mutex
	last float64
}

// Next returns the value that may be published in place of v.
func (t *Tracker) Next(v float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v > Complete {
		v = Complete
	}
	if v < t.last {
		v = t.last
	}
	t.last = v
	return v
}

// Last is the highest value handed out so far.
func (t *Tracker) Last() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Reset starts a new sequence.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = 0
}
