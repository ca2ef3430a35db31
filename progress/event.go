// Package progress routes per-session progress events to whatever listener
// is attached to the session. Delivery is best effort.
package progress

import (
	"encoding/json"
	"math"
)

// Milestones published over the life of a conversion request. Everything
// between Dispatch and Complete is spread evenly over the job's items.
const (
	Upload    = 10.0
	Validated = 25.0
	Dispatch  = 30.0
	Complete  = 100.0
)

// Event is one progress update. Progress is a percentage in [0, 100].
type Event struct {
	SessionID string  `json:"-"`
	Progress  float64 `json:"progress"`
	Label     string  `json:"filename"`
}

// MarshalJSON writes progress with two decimals, the precision listeners show.
func (e Event) MarshalJSON() ([]byte, error) {
	type wire Event
	w := wire(e)
	w.Progress = math.Round(e.Progress*100) / 100
	return json.Marshal(w)
}

// Increment is the share of the dispatch-to-complete range one of n items is worth.
func Increment(n int) float64 {
	if n <= 0 {
		return 0
	}
	return (Complete - Dispatch) / float64(n)
}
