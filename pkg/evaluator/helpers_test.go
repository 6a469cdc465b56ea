package evaluator

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daviddao/pairsum/pkg/model"
	"github.com/daviddao/pairsum/pkg/quantity"
	"github.com/daviddao/pairsum/pkg/structure"
)

// agreementTolerance is the relative+absolute tolerance for comparing an
// optimized value against a basic one.
const agreementTolerance = 1e-7

var siteTypes = []string{"Ni", "O", "Ti"}

func randomSite(r *rand.Rand) structure.Site {
	return structure.Site{
		Type: siteTypes[r.Intn(len(siteTypes))],
		Pos:  [3]float64{r.Float64() * 8, r.Float64() * 8, r.Float64() * 8},
		Uiso: 0.002 + 0.01*r.Float64(),
	}
}

func randomAtoms(r *rand.Rand, n int) *structure.Atoms {
	a := &structure.Atoms{}
	for i := 0; i < n; i++ {
		a.Sites = append(a.Sites, randomSite(r))
	}
	return a
}

// hostKind builds a fresh host of one flavour.
type hostKind struct {
	name string
	make func() Host
}

func hostKinds() []hostKind {
	return []hostKind{
		{"inverse-distance", func() Host {
			return quantity.NewPairSum(quantity.InverseDistance)
		}},
		{"debye", func() Host {
			d := quantity.NewDebyeSum()
			_ = d.SetQmax(6)
			_ = d.SetQstep(0.1)
			d.SetScatteringLengths(map[string]float64{"Ni": 1.03, "O": 0.58, "Ti": -0.34})
			return d
		}},
		{"coulomb-cutoff", func() Host {
			p := quantity.NewPairSum(quantity.Coulomb(map[string]float64{"Ni": 2, "O": -2, "Ti": 4}))
			_ = p.SetRmax(5)
			return p
		}},
	}
}

// basicValue evaluates s from scratch on a fresh host.
func basicValue(t *testing.T, mk func() Host, s structure.Structure, flags ...model.Flag) []float64 {
	t.Helper()
	h := mk()
	require.NoError(t, NewBasic(WithFlags(flags...)).UpdateValue(h, s))
	return h.Value()
}

func requireClose(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	var scale float64 = 1
	for _, x := range want {
		scale = math.Max(scale, math.Abs(x))
	}
	tol := agreementTolerance * scale
	for i := range want {
		require.InDelta(t, want[i], got[i], tol, "element %d", i)
	}
}

func sumValues(parts [][]float64) []float64 {
	rv := make([]float64, len(parts[0]))
	for _, p := range parts {
		for i, x := range p {
			rv[i] += x
		}
	}
	return rv
}

func withSites(a *structure.Atoms, sites []structure.Site) *structure.Atoms {
	return &structure.Atoms{Sites: sites, IncludeSelf: a.IncludeSelf}
}

// mutations returns named edits of s0 that produce eligible diffs.
func mutations(r *rand.Rand, s0 *structure.Atoms) map[string]*structure.Atoms {
	src := s0.Sites
	out := map[string]*structure.Atoms{}

	added := append(append([]structure.Site(nil), src...), randomSite(r), randomSite(r))
	out["add-only"] = withSites(s0, added)

	var removed []structure.Site
	for i, st := range src {
		if i != 3 && i != 7 {
			removed = append(removed, st)
		}
	}
	out["remove-only"] = withSites(s0, removed)

	replaced := append([]structure.Site(nil), src...)
	replaced[2] = randomSite(r)
	replaced[9] = randomSite(r)
	out["replace-in-place"] = withSites(s0, replaced)

	mixed := append([]structure.Site(nil), src[:5]...)
	mixed = append(mixed, randomSite(r))
	mixed = append(mixed, src[6:]...)
	mixed = append(mixed[:1], mixed[2:]...)
	out["remove-and-insert"] = withSites(s0, mixed)
	return out
}

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// perturbedHost misreports subtracted contributions. Only the optimized
// path subtracts.
type perturbedHost struct {
	*quantity.PairSum
}

func (p perturbedHost) AddPairContribution(e structure.PairEnumerator, scale int) {
	p.PairSum.AddPairContribution(e, scale)
	if scale < 0 {
		p.PairSum.AddPairContribution(e, -1)
	}
}

// unkeyedBonds hides that bonds name their sites by index.
type unkeyedBonds struct {
	*quantity.BondCalculator
}

func (unkeyedBonds) IndexKeyed() bool { return false }

// tunedAtoms sets the host cutoff when attached.
type tunedAtoms struct {
	*structure.Atoms
	rmax float64
}

func (ta tunedAtoms) CustomizeHost(b *quantity.Base) {
	if b.Rmax() != ta.rmax {
		_ = b.SetRmax(ta.rmax)
	}
}

func (ta tunedAtoms) Diff(newer structure.Structure) structure.Diff {
	o, ok := newer.(tunedAtoms)
	if !ok {
		return structure.Diff{Old: ta, New: newer}
	}
	d := ta.Atoms.Diff(o.Atoms)
	d.Old, d.New = ta, o
	return d
}

func (ta tunedAtoms) Clone() structure.Structure {
	return tunedAtoms{Atoms: ta.Atoms.Clone().(*structure.Atoms), rmax: ta.rmax}
}
