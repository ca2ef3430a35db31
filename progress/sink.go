package progress

import (
	"errors"
	"sync"
)

var (
	ErrSinkFull   = errors.New("progress sink full")
	ErrSinkClosed = errors.New("progress sink closed")
)

// ChannelSink buffers events on a channel. Send never blocks; an event that
// does not fit is dropped.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (c *ChannelSink) Send(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSinkClosed
	}
	select {
	case c.ch <- ev:
		return nil
	default:
		return ErrSinkFull
	}
}

// Events is closed by Close.
func (c *ChannelSink) Events() <-chan Event {
	return c.ch
}

func (c *ChannelSink) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
