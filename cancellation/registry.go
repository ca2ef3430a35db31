package cancellation

import (
	"sync"

	"pixbatch/logger"
)

// Registry maps a session id to the token of the job currently running for it.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// Begin creates a fresh token for session and returns it with a function
// that removes it again. A session that starts a new job replaces its old
// token; the old job keeps its own token.
func (r *Registry) Begin(session string) (*Token, func()) {
	tok := NewToken()
	if session == "" {
		return tok, func() {}
	}

	r.mu.Lock()
	r.tokens[session] = tok
	r.mu.Unlock()

	return tok, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.tokens[session] == tok {
			delete(r.tokens, session)
		}
	}
}

// Cancel sets the token of session. It reports whether a running job was found;
// an unknown or finished session is not an error.
func (r *Registry) Cancel(session string) bool {
	r.mu.Lock()
	tok, ok := r.tokens[session]
	r.mu.Unlock()

	if !ok {
		logger.Debugf("cancel for session %s: no running job", session)
		return false
	}
	tok.Cancel()
	logger.Infof("cancellation requested for session %s", session)
	return true
}

// Active returns the number of sessions with a running job.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
