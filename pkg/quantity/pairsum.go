package quantity

import (
	"github.com/daviddao/pairsum/pkg/structure"
)

// PairFunc returns the contribution of the current pair of e, a pair of
// sites in s.
type PairFunc func(s structure.Structure, e structure.PairEnumerator) float64

// PairSum is a scalar aggregate: the sum of fn over all included pairs.
type PairSum struct {
	Base
	fn PairFunc
}

// NewPairSum returns a scalar sum of fn.
func NewPairSum(fn PairFunc) *PairSum {
	p := &PairSum{Base: newBase(), fn: fn}
	p.ResetValue()
	return p
}

// SetStructure attaches s and clears the result.
func (p *PairSum) SetStructure(s structure.Structure) {
	p.attach(s)
	p.ResetValue()
}

// ResetValue clears the result.
func (p *PairSum) ResetValue() { p.resize(1) }

// AddPairContribution adds scale times fn of the current pair.
func (p *PairSum) AddPairContribution(e structure.PairEnumerator, scale int) {
	p.value[0] += float64(scale) * p.fn(p.stru, e)
}

// Total returns the scalar result.
func (p *PairSum) Total() float64 { return p.value[0] }

// InverseDistance contributes 1/r per pair.
func InverseDistance(_ structure.Structure, e structure.PairEnumerator) float64 {
	d := e.Distance()
	if d == 0 {
		return 0
	}
	return 1 / d
}

// PairCount contributes 1 per pair.
func PairCount(structure.Structure, structure.PairEnumerator) float64 { return 1 }

// Coulomb returns a pair function q0*q1/r with charges looked up by site
// type. Unknown types carry no charge.
func Coulomb(charges map[string]float64) PairFunc {
	return func(s structure.Structure, e structure.PairEnumerator) float64 {
		d := e.Distance()
		if d == 0 {
			return 0
		}
		return charges[s.SiteType(e.Site0())] * charges[s.SiteType(e.Site1())] / d
	}
}
