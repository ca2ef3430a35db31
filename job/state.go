package job

import (
	"sync"
	"time"
)

// State is the lifecycle position of a job.
type State int

const (
	StatePending State = iota
	StateProcessing
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Finished reports whether the job can no longer change state.
func (s State) Finished() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Status is a job's state plus when it last changed.
type Status struct {
	JobID     string    `json:"job_id"`
	SessionID string    `json:"session_id,omitempty"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`

	state State
}

// States tracks jobs known to this process. A nil *States ignores updates.
type States struct {
	mu   sync.RWMutex
	jobs map[string]*Status
}

func NewStates() *States {
	return &States{jobs: make(map[string]*Status)}
}

// Begin records a new pending job.
func (s *States) Begin(jobID, sessionID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = &Status{JobID: jobID, SessionID: sessionID, State: StatePending.String(), UpdatedAt: time.Now(), state: StatePending}
}

// Set moves a job to state. Finished jobs keep their final state.
func (s *States) Set(jobID string, state State) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.jobs[jobID]
	if !ok {
		st = &Status{JobID: jobID}
		s.jobs[jobID] = st
	} else if st.state.Finished() {
		return
	}
	st.state = state
	st.State = state.String()
	st.UpdatedAt = time.Now()
}

// Get returns a copy of the job's status.
func (s *States) Get(jobID string) (Status, bool) {
	if s == nil {
		return Status{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// Prune forgets finished jobs last updated before cutoff and reports how many.
func (s *States) Prune(cutoff time.Time) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, st := range s.jobs {
		if st.state.Finished() && st.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Current is the typed form of State.
func (st Status) Current() State {
	return st.state
}
