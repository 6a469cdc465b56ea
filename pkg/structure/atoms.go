package structure

import "fmt"

// Site is a typed point with an isotropic displacement parameter.
type Site struct {
	Type string     `json:"type" yaml:"type"`
	Pos  [3]float64 `json:"pos" yaml:"pos"`
	Uiso float64    `json:"uiso,omitempty" yaml:"uiso,omitempty"`
}

// Atoms is a finite, non-periodic structure.
type Atoms struct {
	Sites []Site
	// IncludeSelf makes the enumerator report the zero-length pair of a
	// site with itself.
	IncludeSelf bool
}

// NewAtoms returns a structure holding a copy of sites.
func NewAtoms(sites ...Site) *Atoms {
	return &Atoms{Sites: append([]Site(nil), sites...)}
}

// CountSites returns the number of sites.
func (a *Atoms) CountSites() int { return len(a.Sites) }

// SiteType returns the type label of site i.
func (a *Atoms) SiteType(i int) string { return a.Sites[i].Type }

// CreatePairEnumerator returns an enumerator over all sites.
func (a *Atoms) CreatePairEnumerator() PairEnumerator {
	return newBondEnumerator(a)
}

// Clone returns a deep copy.
func (a *Atoms) Clone() Structure {
	return &Atoms{Sites: append([]Site(nil), a.Sites...), IncludeSelf: a.IncludeSelf}
}

// Equal reports whether other holds the same sites in the same order.
func (a *Atoms) Equal(other *Atoms) bool {
	if other == nil || len(a.Sites) != len(other.Sites) || a.IncludeSelf != other.IncludeSelf {
		return false
	}
	for i := range a.Sites {
		if a.Sites[i] != other.Sites[i] {
			return false
		}
	}
	return true
}

// Diff compares a against newer. Equal site counts are compared side by
// side; when that changes too much, or the counts differ, sites are
// matched by content instead.
func (a *Atoms) Diff(newer Structure) Diff {
	d := Diff{Old: a, New: newer, Method: MethodNone}
	b, ok := newer.(*Atoms)
	if !ok || b == nil || a.IncludeSelf != b.IncludeSelf {
		return d
	}
	if len(a.Sites) == len(b.Sites) {
		sbs := a.diffSideBySide(b)
		if sbs.FastUpdateEligible() || len(sbs.Removed) == 0 {
			return sbs
		}
	}
	return a.diffSorted(b)
}

func (a *Atoms) diffSideBySide(b *Atoms) Diff {
	d := Diff{Old: a, New: b, Method: MethodSideBySide}
	for i := range a.Sites {
		if a.Sites[i] != b.Sites[i] {
			d.Removed = append(d.Removed, i)
			d.Added = append(d.Added, i)
		}
	}
	return d
}

func (a *Atoms) diffSorted(b *Atoms) Diff {
	d := Diff{Old: a, New: b, Method: MethodSorted}
	unmatched := make(map[Site][]int, len(a.Sites))
	for i, s := range a.Sites {
		unmatched[s] = append(unmatched[s], i)
	}
	for j, s := range b.Sites {
		if q := unmatched[s]; len(q) > 0 {
			unmatched[s] = q[1:]
			continue
		}
		d.Added = append(d.Added, j)
	}
	for _, q := range unmatched {
		d.Removed = append(d.Removed, q...)
	}
	d.Removed = sortedUnique(d.Removed)
	return d
}

func (a *Atoms) String() string {
	return fmt.Sprintf("Atoms(%d sites)", len(a.Sites))
}
