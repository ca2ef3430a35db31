package progress

import (
	"sync"

	"pixbatch/logger"
)

// Sink receives the events of one session.
type Sink interface {
	Send(Event) error
}

// Publisher is what a job needs to report progress.
type Publisher interface {
	Publish(session string, ev Event)
}

type session struct {
	sink Sink

	// send serializes delivery so the tracker's order is the order a sink sees.
	send    sync.Mutex
	tracker Tracker
}

// Registry maps session ids to sinks. The map lock is held only for the map
// operation itself, never while a sink is sending.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session)}
}

// Register attaches sink to id, replacing any earlier sink. Progress already
// published for id is kept so a reconnecting listener never sees it go back.
func (r *Registry) Register(id string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := &session{sink: sink}
	if old, ok := r.sessions[id]; ok {
		next.tracker.last = old.tracker.Last()
	}
	r.sessions[id] = next
	logger.Debugf("progress sink registered for session %s", id)
}

// Unregister detaches sink from id if it is still the registered one.
func (r *Registry) Unregister(id string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok && s.sink == sink {
		delete(r.sessions, id)
		logger.Debugf("progress sink removed for session %s", id)
	}
}

// Publish delivers ev to the sink of id. A session without a sink is not an
// error; neither is a sink that fails to send.
func (r *Registry) Publish(id string, ev Event) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok {
		logger.Debugf("no progress sink for session %s (%.2f%% %s)", id, ev.Progress, ev.Label)
		return
	}

	s.send.Lock()
	defer s.send.Unlock()

	ev.SessionID = id
	ev.Progress = s.tracker.Next(ev.Progress)
	if err := s.sink.Send(ev); err != nil {
		logger.Debugf("progress event for session %s dropped: %v", id, err)
	}
}

// Reset lets the next job of id start from zero again.
func (r *Registry) Reset(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.tracker.Reset()
	}
}

// Sessions returns the number of registered sessions.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
