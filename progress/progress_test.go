package progress

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Send(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Progress
	}
	return out
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(Event{SessionID: "s", Progress: 33.333333, Label: "a.png"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"progress":33.33,"filename":"a.png"}`, string(data))
}

func TestIncrement(t *testing.T) {
	assert.InDelta(t, 35.0, Increment(2), 1e-9)
	assert.Zero(t, Increment(0))
	assert.InDelta(t, Complete, Dispatch+Increment(7)*7, 1e-9)
}

func TestTrackerClampsAndCaps(t *testing.T) {
	var tr Tracker
	assert.Equal(t, 10.0, tr.Next(10))
	assert.Equal(t, 30.0, tr.Next(30))
	assert.Equal(t, 30.0, tr.Next(20), "lower value is raised to the last one")
	assert.Equal(t, 100.0, tr.Next(140))
	assert.Equal(t, 100.0, tr.Last())
}

func TestPublishWithoutSinkIsSilent(t *testing.T) {
	reg := NewRegistry()
	assert.NotPanics(t, func() { reg.Publish("missing", Event{Progress: 50}) })
}

func TestPublishRoutesBySession(t *testing.T) {
	reg := NewRegistry()
	a, b := &recordingSink{}, &recordingSink{}
	reg.Register("a", a)
	reg.Register("b", b)

	reg.Publish("a", Event{Progress: 40, Label: "x"})
	reg.Publish("b", Event{Progress: 70, Label: "y"})

	require.Len(t, a.events, 1)
	assert.Equal(t, "a", a.events[0].SessionID)
	assert.Equal(t, []float64{70}, b.values())
}

func TestPublishedValuesNeverDecrease(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reg.Register("s", sink)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.Publish("s", Event{Progress: float64(i * 3)})
		}(i)
	}
	wg.Wait()

	vals := sink.values()
	require.Len(t, vals, 50)
	for i := 1; i < len(vals); i++ {
		assert.GreaterOrEqual(t, vals[i], vals[i-1])
	}
	assert.LessOrEqual(t, vals[len(vals)-1], Complete)
}

func TestReRegisterKeepsProgress(t *testing.T) {
	reg := NewRegistry()
	first := &recordingSink{}
	reg.Register("s", first)
	reg.Publish("s", Event{Progress: 60})

	second := &recordingSink{}
	reg.Register("s", second)
	reg.Publish("s", Event{Progress: 25})

	assert.Equal(t, []float64{60}, second.values())
}

func TestUnregisterOnlyOwnSink(t *testing.T) {
	reg := NewRegistry()
	old, cur := &recordingSink{}, &recordingSink{}
	reg.Register("s", old)
	reg.Register("s", cur)

	reg.Unregister("s", old)
	assert.Equal(t, 1, reg.Sessions())

	reg.Unregister("s", cur)
	assert.Zero(t, reg.Sessions())
}

func TestSinkErrorIsIgnored(t *testing.T) {
	reg := NewRegistry()
	reg.Register("s", &recordingSink{err: errors.New("gone")})
	assert.NotPanics(t, func() { reg.Publish("s", Event{Progress: 1}) })
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	sink := NewChannelSink(1)
	require.NoError(t, sink.Send(Event{Progress: 1}))
	assert.ErrorIs(t, sink.Send(Event{Progress: 2}), ErrSinkFull)

	sink.Close()
	assert.ErrorIs(t, sink.Send(Event{Progress: 3}), ErrSinkClosed)
	sink.Close()

	var got []float64
	for ev := range sink.Events() {
		got = append(got, ev.Progress)
	}
	assert.Equal(t, []float64{1}, got)
}

func TestResetStartsNewSequence(t *testing.T) {
	r := NewRegistry()
	sink := &recordingSink{}
	r.Register("s", sink)

	r.Publish("s", Event{Progress: Complete})
	r.Reset("s")
	r.Publish("s", Event{Progress: Upload})
	r.Reset("missing")

	assert.Equal(t, []float64{Complete, Upload}, sink.values())
}
