package evaluator

import (
	"github.com/daviddao/pairsum/pkg/model"
	"github.com/daviddao/pairsum/pkg/structure"
)

// Basic recomputes the value from scratch on every update. It is always
// correct and serves as the reference for the other strategies.
type Basic struct {
	settings
}

// NewBasic returns a single-worker Basic evaluator.
func NewBasic(opts ...Option) *Basic {
	b := &Basic{settings: defaultSettings()}
	for _, opt := range opts {
		opt(&b.settings)
	}
	return b
}

// Kind returns KindBasic.
func (b *Basic) Kind() model.Kind { return model.KindBasic }

// UpdateValue recomputes h for s.
func (b *Basic) UpdateValue(h Host, s structure.Structure) error {
	if s == nil {
		return ErrNilStructure
	}
	return b.observe(model.KindBasic, func() error {
		b.updateCompletely(h, s)
		return nil
	})
}

// updateCompletely attaches s to h and sums every qualifying pair.
//
// With several workers the work is split on the outer loop over anchors
// when there are enough anchors to balance the load, otherwise on the
// inner loop over partners. The summation order follows the split, so
// merged values for different worker counts agree only up to rounding.
func (b *Basic) updateCompletely(h Host, s structure.Structure) {
	b.typeUsed = model.KindBasic
	h.SetStructure(s)
	bnds := s.CreatePairEnumerator()
	h.ConfigureBonds(bnds)
	cntsites := s.CountSites()
	n := int64(b.cpuIndex)
	chopOuter := float64(b.ncpu) <= float64(cntsites-1)*cpuLoadVariance+1
	chopInner := !chopOuter
	if !b.IsParallel() {
		chopOuter, chopInner = false, false
	}
	hasMask := h.HasMask()
	fullsum := b.Flag(model.FlagUseFullSum)
	for i0 := 0; i0 < cntsites; i0++ {
		if chopOuter && !b.claim(&n) {
			continue
		}
		bnds.SelectAnchorSite(i0)
		i1hi := i0 + 1
		if fullsum {
			i1hi = cntsites
		}
		bnds.SelectSiteRange(0, i1hi)
		for bnds.Rewind(); !bnds.Finished(); bnds.Next() {
			if chopInner && !b.claim(&n) {
				continue
			}
			i1 := bnds.Site1()
			if hasMask && !h.PairMask(i0, i1) {
				continue
			}
			scale := 2
			if fullsum || i0 == i1 {
				scale = 1
			}
			h.AddPairContribution(bnds, scale)
		}
	}
	b.valueTicker.Click()
}
