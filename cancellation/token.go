// Package cancellation holds the cooperative stop flag shared between a
// request handler, the job that serves it and whoever asks to cancel it.
package cancellation

import (
	"sync"
	"sync/atomic"
)

// Token is set at most once. Readers poll Cancelled or wait on Done.
type Token struct {
	flag atomic.Bool
	done chan struct{}
	once sync.Once
}

func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel sets the token. Only the first call has an effect.
func (t *Token) Cancel() {
	t.once.Do(func() {
		t.flag.Store(true)
		close(t.done)
	})
}

func (t *Token) Cancelled() bool {
	return t.flag.Load()
}

// Done is closed when the token is cancelled.
func (t *Token) Done() <-chan struct{} {
	return t.done
}
