// Package structure defines what the evaluators need from a structure of
// sites: a site count, a pair enumerator, a diff against a newer snapshot
// and a deep clone.
//
// Atoms is the reference implementation: a finite, non-periodic set of
// typed point sites.
package structure

import "sort"

// Structure is a snapshot of sites. It must not change while an evaluator
// holds it; changes are expressed by handing a new snapshot to the
// evaluator.
type Structure interface {
	// CountSites returns the number of sites.
	CountSites() int

	// SiteType returns the type label (e.g. atom symbol) of site i.
	SiteType(i int) string

	// CreatePairEnumerator returns a fresh enumerator bound to this snapshot.
	CreatePairEnumerator() PairEnumerator

	// Diff compares this (older) snapshot against newer.
	Diff(newer Structure) Diff

	// Clone returns a deep, independent copy.
	Clone() Structure
}

// PairEnumerator walks the pairs (anchor, partner) of a structure. The
// anchor is fixed by SelectAnchorSite; partners come from the current
// selection, filtered by the distance window.
type PairEnumerator interface {
	SelectAnchorSite(i int)
	// SelectSiteRange selects partners lo <= j < hi.
	SelectSiteRange(lo, hi int)
	// SelectSites selects an explicit list of partner indices.
	SelectSites(indices []int)
	SetRmin(r float64)
	SetRmax(r float64)

	Rewind()
	Finished() bool
	Next()

	Site0() int
	Site1() int
	// Distance is |r1 - r0| for the current pair.
	Distance() float64
	// R01 is the vector from site0 to site1.
	R01() [3]float64
	// Msd is the mean square displacement of the pair along R01.
	Msd() float64
}

// Method tells how a Diff was computed.
type Method int

const (
	// MethodNone means the snapshots could not be compared.
	MethodNone Method = iota
	// MethodSideBySide compares sites index by index; both snapshots have
	// the same count and unchanged sites keep their index.
	MethodSideBySide
	// MethodSorted matches sites by content; sites may be inserted or
	// removed at any position, so unchanged sites may shift index.
	MethodSorted
)

func (m Method) String() string {
	switch m {
	case MethodSideBySide:
		return "side-by-side"
	case MethodSorted:
		return "sorted"
	}
	return "none"
}

// Diff is the difference between an Old and a New snapshot.
type Diff struct {
	Old Structure
	New Structure
	// Removed holds ascending, unique indices of Old sites absent in New.
	Removed []int
	// Added holds ascending, unique indices of New sites absent in Old.
	Added  []int
	Method Method
}

// FastUpdateEligible reports whether applying the diff is cheaper than
// recomputing New from scratch.
func (d Diff) FastUpdateEligible() bool {
	if d.Method == MethodNone || d.Old == nil || d.New == nil {
		return false
	}
	return len(d.Removed)+len(d.Added) < d.New.CountSites()
}

// Complement returns the ascending indices in [0, n) not present in the
// ascending list indices.
func Complement(n int, indices []int) []int {
	rv := make([]int, 0, n)
	k := 0
	for i := 0; i < n; i++ {
		if k < len(indices) && indices[k] == i {
			k++
			continue
		}
		rv = append(rv, i)
	}
	return rv
}

func sortedUnique(indices []int) []int {
	sort.Ints(indices)
	out := indices[:0]
	for _, v := range indices {
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
