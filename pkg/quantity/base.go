// Package quantity implements pair-sum aggregates that evaluators keep up
// to date: a scalar sum with a pluggable pair function, a Debye scattering
// sum over a q-grid, and a bond list.
//
// Every host records configuration changes on its Ticker. Swapping the
// structure is not a configuration change, unless the structure itself
// reconfigures the host through the Customizer hook.
package quantity

import (
	"fmt"
	"math"

	"github.com/daviddao/pairsum/pkg/clock"
	"github.com/daviddao/pairsum/pkg/structure"
)

// Customizer is implemented by structures that adjust host configuration
// when attached, e.g. to set a cutoff suited to their density.
type Customizer interface {
	CustomizeHost(b *Base)
}

// Base holds the state shared by all hosts: current structure, result
// buffer, stash buffer, distance window and masks.
type Base struct {
	ticker clock.Ticker
	stru   structure.Structure
	value  []float64
	stash  []float64

	rmin float64
	rmax float64

	// excluded site pairs, stored as (min, max)
	pairMask map[[2]int]bool
	// excluded type pairs, stored sorted
	typeMask map[[2]string]bool
}

func newBase() Base {
	return Base{rmax: math.Inf(1)}
}

// Ticker returns the configuration ticker.
func (b *Base) Ticker() clock.Ticker { return b.ticker }

// Structure returns the attached structure, or nil.
func (b *Base) Structure() structure.Structure { return b.stru }

// attach stores s and runs its Customizer hook.
func (b *Base) attach(s structure.Structure) {
	b.stru = s
	if c, ok := s.(Customizer); ok {
		c.CustomizeHost(b)
	}
}

func (b *Base) countSites() int {
	if b.stru == nil {
		return 0
	}
	return b.stru.CountSites()
}

// Value returns a copy of the result buffer.
func (b *Base) Value() []float64 {
	return append([]float64(nil), b.value...)
}

// StashPartialValue saves the result buffer so a following structure swap
// does not discard it.
func (b *Base) StashPartialValue() {
	b.stash = append(b.stash[:0], b.value...)
}

// RestorePartialValue brings back the buffer saved by StashPartialValue.
func (b *Base) RestorePartialValue() {
	b.value = append(b.value[:0], b.stash...)
	b.stash = b.stash[:0]
}

func (b *Base) resize(n int) {
	if cap(b.value) < n {
		b.value = make([]float64, n)
		return
	}
	b.value = b.value[:n]
	for i := range b.value {
		b.value[i] = 0
	}
}

// SetRmin sets the shortest pair distance included in the sum.
func (b *Base) SetRmin(r float64) error {
	if r < 0 {
		return fmt.Errorf("rmin must be non-negative, got %g", r)
	}
	b.rmin = r
	b.ticker.Click()
	return nil
}

// SetRmax sets the longest pair distance included in the sum.
func (b *Base) SetRmax(r float64) error {
	if r < 0 {
		return fmt.Errorf("rmax must be non-negative, got %g", r)
	}
	b.rmax = r
	b.ticker.Click()
	return nil
}

// Rmin returns the shortest included pair distance.
func (b *Base) Rmin() float64 { return b.rmin }

// Rmax returns the longest included pair distance.
func (b *Base) Rmax() float64 { return b.rmax }

// ConfigureBonds applies the distance window to an enumerator.
func (b *Base) ConfigureBonds(e structure.PairEnumerator) {
	e.SetRmin(b.rmin)
	e.SetRmax(b.rmax)
}

// SetPairMask includes (on) or excludes (!on) the pair of sites i and j.
func (b *Base) SetPairMask(i, j int, on bool) {
	if i > j {
		i, j = j, i
	}
	key := [2]int{i, j}
	if on {
		delete(b.pairMask, key)
	} else {
		if b.pairMask == nil {
			b.pairMask = make(map[[2]int]bool)
		}
		b.pairMask[key] = true
	}
	b.ticker.Click()
}

// SetTypeMask includes (on) or excludes (!on) all pairs of sites with
// types t0 and t1.
func (b *Base) SetTypeMask(t0, t1 string, on bool) {
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	key := [2]string{t0, t1}
	if on {
		delete(b.typeMask, key)
	} else {
		if b.typeMask == nil {
			b.typeMask = make(map[[2]string]bool)
		}
		b.typeMask[key] = true
	}
	b.ticker.Click()
}

// ClearMask includes every pair again.
func (b *Base) ClearMask() {
	b.pairMask = nil
	b.typeMask = nil
	b.ticker.Click()
}

// HasMask reports whether any pair is excluded.
func (b *Base) HasMask() bool {
	return len(b.pairMask) > 0 || len(b.typeMask) > 0
}

// HasPairMask reports whether pairs are excluded by site index. Such masks
// do not follow sites whose index shifts.
func (b *Base) HasPairMask() bool {
	return len(b.pairMask) > 0
}

// IndexKeyed reports whether the host state refers to sites by index.
// For the base that is only the pair mask.
func (b *Base) IndexKeyed() bool { return b.HasPairMask() }

// PairMask reports whether the pair of sites i and j is included.
func (b *Base) PairMask(i, j int) bool {
	if len(b.pairMask) > 0 {
		k := [2]int{i, j}
		if i > j {
			k = [2]int{j, i}
		}
		if b.pairMask[k] {
			return false
		}
	}
	if len(b.typeMask) > 0 && b.stru != nil {
		t0, t1 := b.stru.SiteType(i), b.stru.SiteType(j)
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if b.typeMask[[2]string{t0, t1}] {
			return false
		}
	}
	return true
}
