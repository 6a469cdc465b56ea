package quantity

import (
	"sort"

	"github.com/daviddao/pairsum/pkg/structure"
)

// Bond is one directed pair of sites.
type Bond struct {
	Site0     int        `json:"site0"`
	Site1     int        `json:"site1"`
	Type0     string     `json:"type0"`
	Type1     string     `json:"type1"`
	Distance  float64    `json:"distance"`
	Direction [3]float64 `json:"direction"`
}

func (b Bond) reversed() Bond {
	return Bond{
		Site0:     b.Site1,
		Site1:     b.Site0,
		Type0:     b.Type1,
		Type1:     b.Type0,
		Distance:  b.Distance,
		Direction: [3]float64{-b.Direction[0], -b.Direction[1], -b.Direction[2]},
	}
}

// BondCalculator lists every directed bond in the distance window. Its
// value is the sorted list of bond lengths.
type BondCalculator struct {
	Base
	bonds   map[Bond]int
	stashed map[Bond]int
}

// NewBondCalculator returns a calculator with bonds up to rmax.
func NewBondCalculator(rmax float64) *BondCalculator {
	bc := &BondCalculator{Base: newBase()}
	bc.rmax = rmax
	bc.ResetValue()
	return bc
}

// SetStructure attaches s and drops all bonds.
func (bc *BondCalculator) SetStructure(s structure.Structure) {
	bc.attach(s)
	bc.ResetValue()
}

// ResetValue drops all bonds.
func (bc *BondCalculator) ResetValue() {
	bc.bonds = make(map[Bond]int)
}

// AddPairContribution records (scale > 0) or drops (scale < 0) the current
// bond. A scale of magnitude 2 stands for both directions.
func (bc *BondCalculator) AddPairContribution(e structure.PairEnumerator, scale int) {
	b := Bond{
		Site0:     e.Site0(),
		Site1:     e.Site1(),
		Distance:  e.Distance(),
		Direction: e.R01(),
	}
	if bc.stru != nil {
		b.Type0 = bc.stru.SiteType(b.Site0)
		b.Type1 = bc.stru.SiteType(b.Site1)
	}
	sign := 1
	if scale < 0 {
		sign, scale = -1, -scale
	}
	bc.bonds[b] += sign
	if scale == 2 {
		bc.bonds[b.reversed()] += sign
	}
}

// IndexKeyed is always true: bonds name their sites by index.
func (bc *BondCalculator) IndexKeyed() bool { return true }

// StashPartialValue saves the bond list.
func (bc *BondCalculator) StashPartialValue() {
	bc.stashed = make(map[Bond]int, len(bc.bonds))
	for k, v := range bc.bonds {
		bc.stashed[k] = v
	}
}

// RestorePartialValue brings back the saved bond list.
func (bc *BondCalculator) RestorePartialValue() {
	bc.bonds = bc.stashed
	bc.stashed = nil
}

// Bonds returns the bond list sorted by length, then site indices.
func (bc *BondCalculator) Bonds() []Bond {
	var rv []Bond
	for b, n := range bc.bonds {
		for ; n > 0; n-- {
			rv = append(rv, b)
		}
	}
	sort.Slice(rv, func(i, j int) bool { return bondLess(rv[i], rv[j]) })
	return rv
}

// Value returns the sorted bond lengths.
func (bc *BondCalculator) Value() []float64 {
	bonds := bc.Bonds()
	rv := make([]float64, len(bonds))
	for i, b := range bonds {
		rv[i] = b.Distance
	}
	return rv
}

func bondLess(a, b Bond) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.Site0 != b.Site0 {
		return a.Site0 < b.Site0
	}
	if a.Site1 != b.Site1 {
		return a.Site1 < b.Site1
	}
	for k := 0; k < 3; k++ {
		if a.Direction[k] != b.Direction[k] {
			return a.Direction[k] < b.Direction[k]
		}
	}
	return a.Type0+"\x00"+a.Type1 < b.Type0+"\x00"+b.Type1
}
