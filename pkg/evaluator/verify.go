package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/daviddao/pairsum/pkg/model"
	"github.com/daviddao/pairsum/pkg/quantity"
	"github.com/daviddao/pairsum/pkg/structure"
)

// sqrtDoubleEps scales the value comparison tolerance.
var sqrtDoubleEps = math.Sqrt(math.Nextafter(1, 2) - 1)

// directionEps bounds the difference of bond directions.
const directionEps = 1e-10

// Verifying runs an incremental update, then a full recompute of the same
// target, and returns an *InconsistencyError if they disagree. When the
// incremental update itself fell back to a full recompute there is
// nothing to compare and the check is skipped.
//
// Partial values of parallel workers depend on how each strategy splits
// the work, so the check only runs with a single worker.
type Verifying struct {
	Incremental
}

// NewVerifying returns a single-worker Verifying evaluator.
func NewVerifying(opts ...Option) *Verifying {
	v := &Verifying{Incremental: Incremental{Basic: Basic{settings: defaultSettings()}}}
	for _, opt := range opts {
		opt(&v.settings)
	}
	return v
}

// Kind returns KindCheck.
func (v *Verifying) Kind() model.Kind { return model.KindCheck }

// UpdateValue brings h up to date for s and cross-checks the result.
func (v *Verifying) UpdateValue(h Host, s structure.Structure) error {
	if s == nil {
		return ErrNilStructure
	}
	return v.observe(model.KindCheck, func() error {
		return v.updateChecked(h, s)
	})
}

func (v *Verifying) updateChecked(h Host, s structure.Structure) error {
	v.updateOptimized(h, s)
	if v.typeUsed == model.KindBasic {
		return nil
	}
	if v.IsParallel() {
		v.logger.Debug("check skipped for parallel worker",
			slog.Int("worker", v.cpuIndex), slog.Int("workers", v.ncpu))
		return nil
	}
	saved := snapshot(h)
	v.updateCompletely(h, s)
	v.typeUsed = model.KindCheck
	if err := saved.compare(h); err != nil {
		recordInconsistency(context.Background())
		v.logger.Error("optimized evaluation diverged",
			slog.Int("sites", s.CountSites()), slog.String("error", err.Error()))
		return err
	}
	return nil
}

// results is what an optimized update produced, kept for comparison.
type results struct {
	value []float64
	bonds []quantity.Bond
	// bonds are only compared for hosts that expose them
	hasBonds bool
}

func snapshot(h Host) results {
	r := results{value: h.Value()}
	if bi, ok := h.(BondInspector); ok {
		r.bonds = bi.Bonds()
		r.hasBonds = true
	}
	return r
}

// compare checks h against the snapshot. Values must agree within
// sqrt(eps) scaled by the largest magnitude; bonds must match exactly up
// to rounding of their geometry.
func (r results) compare(h Host) error {
	if err := CompareValues(r.value, h.Value()); err != nil {
		return err
	}
	if !r.hasBonds {
		return nil
	}
	bonds := h.(BondInspector).Bonds()
	if len(bonds) != len(r.bonds) {
		return &InconsistencyError{
			Field:  "bonds",
			Index:  min(len(bonds), len(r.bonds)),
			Detail: fmt.Sprintf("count optimized=%d basic=%d", len(r.bonds), len(bonds)),
		}
	}
	for i := range bonds {
		if !sameBond(r.bonds[i], bonds[i]) {
			return &InconsistencyError{
				Field:  "bonds",
				Index:  i,
				Detail: fmt.Sprintf("optimized=%+v basic=%+v", r.bonds[i], bonds[i]),
			}
		}
	}
	return nil
}

// CompareValues checks an optimized result against a basic one. Values
// must agree within sqrt(eps) scaled by the largest optimized magnitude.
func CompareValues(optimized, basic []float64) error {
	if len(basic) != len(optimized) {
		return &InconsistencyError{
			Field:     "length",
			Optimized: float64(len(optimized)),
			Basic:     float64(len(basic)),
		}
	}
	tol := sqrtDoubleEps * math.Max(maxAbs(optimized), 1)
	for i := range basic {
		if math.Abs(basic[i]-optimized[i]) > tol || math.IsNaN(basic[i]) != math.IsNaN(optimized[i]) {
			return &InconsistencyError{
				Field:     "value",
				Index:     i,
				Optimized: optimized[i],
				Basic:     basic[i],
				Tolerance: tol,
			}
		}
	}
	return nil
}

func sameBond(a, b quantity.Bond) bool {
	if a.Site0 != b.Site0 || a.Site1 != b.Site1 || a.Type0 != b.Type0 || a.Type1 != b.Type1 {
		return false
	}
	if math.Abs(a.Distance-b.Distance) > directionEps {
		return false
	}
	for k := 0; k < 3; k++ {
		if math.Abs(a.Direction[k]-b.Direction[k]) > directionEps {
			return false
		}
	}
	return true
}

func maxAbs(xs []float64) float64 {
	var m float64
	for _, x := range xs {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
