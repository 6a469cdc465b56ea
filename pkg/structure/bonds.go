package structure

import "math"

// bondEnumerator visits the partners of one anchor site in a fixed order:
// the order of the current selection.
type bondEnumerator struct {
	atoms    *Atoms
	anchor   int
	selected []int
	pos      int
	rmin     float64
	rmax     float64
}

func newBondEnumerator(a *Atoms) *bondEnumerator {
	b := &bondEnumerator{atoms: a, rmax: math.Inf(1)}
	b.SelectSiteRange(0, len(a.Sites))
	return b
}

func (b *bondEnumerator) SelectAnchorSite(i int) {
	b.anchor = i
	b.pos = len(b.selected)
}

func (b *bondEnumerator) SelectSiteRange(lo, hi int) {
	b.selected = b.selected[:0]
	for j := lo; j < hi; j++ {
		b.selected = append(b.selected, j)
	}
	b.pos = len(b.selected)
}

func (b *bondEnumerator) SelectSites(indices []int) {
	b.selected = append(b.selected[:0], indices...)
	b.pos = len(b.selected)
}

func (b *bondEnumerator) SetRmin(r float64) { b.rmin = r }
func (b *bondEnumerator) SetRmax(r float64) { b.rmax = r }

func (b *bondEnumerator) Rewind() {
	b.pos = -1
	b.advance()
}

func (b *bondEnumerator) Finished() bool { return b.pos >= len(b.selected) }

func (b *bondEnumerator) Next() { b.advance() }

func (b *bondEnumerator) advance() {
	for b.pos++; b.pos < len(b.selected); b.pos++ {
		if b.accept(b.selected[b.pos]) {
			return
		}
	}
}

func (b *bondEnumerator) accept(j int) bool {
	if j == b.anchor {
		return b.atoms.IncludeSelf
	}
	d := b.distanceTo(j)
	return b.rmin <= d && d <= b.rmax
}

func (b *bondEnumerator) Site0() int { return b.anchor }
func (b *bondEnumerator) Site1() int { return b.selected[b.pos] }

func (b *bondEnumerator) Distance() float64 { return b.distanceTo(b.Site1()) }

func (b *bondEnumerator) distanceTo(j int) float64 {
	r := b.r01(j)
	return math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
}

func (b *bondEnumerator) R01() [3]float64 { return b.r01(b.Site1()) }

func (b *bondEnumerator) r01(j int) [3]float64 {
	p0 := b.atoms.Sites[b.anchor].Pos
	p1 := b.atoms.Sites[j].Pos
	return [3]float64{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
}

func (b *bondEnumerator) Msd() float64 {
	return b.atoms.Sites[b.anchor].Uiso + b.atoms.Sites[b.Site1()].Uiso
}
