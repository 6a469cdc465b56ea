// Package clock implements the event ticker used for cache invalidation.
//
// A Ticker records the moment its owner last changed as a snapshot of a
// shared logical counter. Two rules govern it:
//
//	Click:      advance the shared counter, then adopt its value.
//	UpdateFrom: adopt another ticker's value iff it is strictly greater.
//
// Comparing two tickers answers "did A change after B was computed?" with
// no wall-clock time involved. The shared counter is a (Epoch, Step) pair;
// when Step wraps to zero the Epoch advances, so the order stays strictly
// increasing for the life of the process.
//
// Note: a Ticker is not goroutine-safe. The Source it clicks against is,
// so tickers owned by different goroutines may click concurrently.
package clock

import "sync"

// Stamp is a point in the shared logical counter. Stamps are ordered
// lexicographically by (Epoch, Step).
type Stamp struct {
	Epoch uint64 `json:"epoch"`
	Step  uint64 `json:"step"`
}

// Less returns true if s is strictly before other.
func (s Stamp) Less(other Stamp) bool {
	if s.Epoch != other.Epoch {
		return s.Epoch < other.Epoch
	}
	return s.Step < other.Step
}

// LessEq returns true if s is before or equal to other.
func (s Stamp) LessEq(other Stamp) bool {
	return !other.Less(s)
}

// Compare returns -1, 0 or +1 as s is before, equal to or after other.
func (s Stamp) Compare(other Stamp) int {
	switch {
	case s.Less(other):
		return -1
	case other.Less(s):
		return 1
	}
	return 0
}

// Source is the shared counter tickers click against.
type Source struct {
	mu  sync.Mutex
	now Stamp
}

// Default is the process-wide source used by tickers without one.
var Default = &Source{}

// NewSource returns an independent source starting at (0, 0). Tests use it
// to control the counter without touching Default.
func NewSource() *Source { return &Source{} }

// Advance increments the counter and returns the new value.
func (src *Source) Advance() Stamp {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.now.Step++
	if src.now.Step == 0 {
		src.now.Epoch++
	}
	return src.now
}

// Now returns the current counter value without advancing it.
func (src *Source) Now() Stamp {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.now
}

// Set moves the counter to a specific value. Used to seed the counter in
// tests, e.g. just below a Step overflow.
func (src *Source) Set(s Stamp) {
	src.mu.Lock()
	defer src.mu.Unlock()
	src.now = s
}

// Ticker is a per-object snapshot of a Source. The zero value is a ticker
// at (0, 0) bound to Default.
type Ticker struct {
	src  *Source
	tick Stamp
}

// NewTicker returns a ticker at (0, 0) bound to src. A nil src means Default.
func NewTicker(src *Source) Ticker {
	return Ticker{src: src}
}

func (t *Ticker) source() *Source {
	if t.src == nil {
		return Default
	}
	return t.src
}

// Click advances the shared counter and stamps the ticker with it.
func (t *Ticker) Click() Stamp {
	t.tick = t.source().Advance()
	return t.tick
}

// UpdateFrom adopts other's snapshot if it is strictly greater than ours.
func (t *Ticker) UpdateFrom(other Ticker) {
	if other.tick.Less(t.tick) || other.tick == t.tick {
		return
	}
	t.tick = other.tick
}

// Stamp returns the snapshot without advancing anything.
func (t Ticker) Stamp() Stamp { return t.tick }

// Source returns the source the ticker clicks against.
func (t Ticker) Source() *Source { return t.source() }

// Less reports whether t was stamped strictly before other.
func (t Ticker) Less(other Ticker) bool { return t.tick.Less(other.tick) }

// LessEq reports whether t was stamped before or together with other.
func (t Ticker) LessEq(other Ticker) bool { return t.tick.LessEq(other.tick) }

// Greater reports whether t was stamped strictly after other.
func (t Ticker) Greater(other Ticker) bool { return other.tick.Less(t.tick) }

// GreaterEq reports whether t was stamped after or together with other.
func (t Ticker) GreaterEq(other Ticker) bool { return other.tick.LessEq(t.tick) }
