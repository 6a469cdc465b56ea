package evaluator

import (
	"context"
	"log/slog"

	"github.com/daviddao/pairsum/pkg/model"
	"github.com/daviddao/pairsum/pkg/structure"
)

// Fallback reasons reported in logs and metrics.
const (
	reasonNoCache          = "no-cache"
	reasonHostReconfigured = "host-reconfigured"
	reasonNotEligible      = "not-eligible"
	reasonIndexUnsafe      = "index-unsafe"
	reasonSwapReconfigured = "swap-reconfigured"
)

// Incremental updates the value by the difference between the structure
// it evaluated last and the target structure. Its cost scales with the
// number of changed sites rather than with all pairs. Whenever that is
// unsafe it recomputes from scratch, with no visible difference in the
// result.
type Incremental struct {
	Basic
	last structure.Structure
}

// NewIncremental returns a single-worker Incremental evaluator.
func NewIncremental(opts ...Option) *Incremental {
	e := &Incremental{Basic: Basic{settings: defaultSettings()}}
	for _, opt := range opts {
		opt(&e.settings)
	}
	return e
}

// Kind returns KindOptimized.
func (e *Incremental) Kind() model.Kind { return model.KindOptimized }

// LastStructure returns the private snapshot of the last evaluated
// structure, or nil before the first update.
func (e *Incremental) LastStructure() structure.Structure { return e.last }

// UpdateValue brings h up to date for s.
func (e *Incremental) UpdateValue(h Host, s structure.Structure) error {
	if s == nil {
		return ErrNilStructure
	}
	return e.observe(model.KindOptimized, func() error {
		e.updateOptimized(h, s)
		return nil
	})
}

func (e *Incremental) updateOptimized(h Host, s structure.Structure) {
	e.typeUsed = model.KindOptimized
	if e.last == nil {
		e.fallback(h, s, reasonNoCache)
		return
	}
	if h.Ticker().GreaterEq(e.valueTicker) {
		e.fallback(h, s, reasonHostReconfigured)
		return
	}
	d := e.last.Diff(s)
	if !d.FastUpdateEligible() {
		e.fallback(h, s, reasonNotEligible, slog.String("method", d.Method.String()))
		return
	}
	// index-keyed state cannot follow sites that change index
	if (e.Flag(model.FlagFixedSiteIndex) || h.IndexKeyed()) &&
		d.Method != structure.MethodSideBySide {
		e.fallback(h, s, reasonIndexUnsafe, slog.String("method", d.Method.String()))
		return
	}

	// one striding counter spans both phases
	n := int64(e.cpuIndex)
	fullsum := e.Flag(model.FlagUseFullSum)
	hasMask := h.HasMask()

	// Remove contributions of the removed sites, over the old structure.
	// Anchors are the removed sites followed by the unchanged ones.
	bnds0 := d.Old.CreatePairEnumerator()
	h.ConfigureBonds(bnds0)
	anchors := append([]int(nil), d.Removed...)
	if len(d.Removed) > 0 {
		anchors = append(anchors, structure.Complement(d.Old.CountSites(), d.Removed)...)
	}
	bnds0.SelectSites(anchors)
	lastAnchor := len(d.Removed)
	if fullsum {
		lastAnchor = len(anchors)
	}
	reselect := fullsum
	for k := 0; k < lastAnchor; k++ {
		if !e.claim(&n) {
			continue
		}
		i0 := anchors[k]
		bnds0.SelectAnchorSite(i0)
		if !fullsum {
			// half sum: skip removed anchors already visited
			bnds0.SelectSites(anchors[k:])
		} else if reselect && k >= len(d.Removed) {
			// full sum: unchanged anchors pair only with removed sites
			bnds0.SelectSites(d.Removed)
			reselect = false
		}
		for bnds0.Rewind(); !bnds0.Finished(); bnds0.Next() {
			i1 := bnds0.Site1()
			if hasMask && !h.PairMask(i0, i1) {
				continue
			}
			scale := -2
			if fullsum || i0 == i1 {
				scale = -1
			}
			h.AddPairContribution(bnds0, scale)
		}
	}

	// Swapping the structure resets the host value; keep the partial sum.
	// The new structure may also reconfigure the host, in which case the
	// partial sum is meaningless.
	h.StashPartialValue()
	h.SetStructure(d.New)
	if h.Ticker().GreaterEq(e.valueTicker) {
		e.fallback(h, s, reasonSwapReconfigured)
		return
	}
	h.RestorePartialValue()

	// Add contributions of the added sites, over the new structure.
	// Anchors are the unchanged sites followed by the added ones.
	bnds1 := d.New.CreatePairEnumerator()
	h.ConfigureBonds(bnds1)
	var anchors1 []int
	if len(d.Added) > 0 {
		anchors1 = structure.Complement(d.New.CountSites(), d.Added)
		anchors1 = append(anchors1, d.Added...)
	}
	firstAdded := len(anchors1) - len(d.Added)
	bnds1.SelectSites(d.Added)
	firstAnchor := firstAdded
	if fullsum {
		firstAnchor = 0
	}
	reselect = fullsum
	for k := firstAnchor; k < len(anchors1); k++ {
		if !e.claim(&n) {
			continue
		}
		i0 := anchors1[k]
		bnds1.SelectAnchorSite(i0)
		if !fullsum {
			// half sum: pair with unchanged sites and added sites up to self
			bnds1.SelectSites(anchors1[:k+1])
		} else if reselect && k >= firstAdded {
			// full sum: added anchors pair with everything
			bnds1.SelectSites(anchors1)
			reselect = false
		}
		for bnds1.Rewind(); !bnds1.Finished(); bnds1.Next() {
			i1 := bnds1.Site1()
			if hasMask && !h.PairMask(i0, i1) {
				continue
			}
			scale := 2
			if fullsum || i0 == i1 {
				scale = 1
			}
			h.AddPairContribution(bnds1, scale)
		}
	}
	e.last = d.New.Clone()
	e.valueTicker.Click()
}

// fallback recomputes h from scratch and caches a clone of s.
func (e *Incremental) fallback(h Host, s structure.Structure, reason string, attrs ...any) {
	recordFallback(context.Background(), reason)
	e.logger.Debug("full recompute",
		append([]any{slog.String("reason", reason), slog.Int("sites", s.CountSites())}, attrs...)...)
	e.updateCompletely(h, s)
	e.last = s.Clone()
}
