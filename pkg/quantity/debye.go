package quantity

import (
	"fmt"
	"math"

	"github.com/daviddao/pairsum/pkg/structure"
)

const (
	// DefaultDebyePrecision cuts off a pair once its damped amplitude
	// falls below this value.
	DefaultDebyePrecision = 1e-6

	distanceEpsilon = 1e-12
	qpointEpsilon   = 1e-10
)

// DebyeSum computes the Debye scattering sum
//
//	S(q) = sum_ij f_i(q) f_j(q) exp(-msd_ij q^2 / 2) sin(q r_ij) / r_ij
//
// on a uniform q-grid. Form factors are constant per site type
// (neutron scattering lengths); unknown types scatter with length 1.
type DebyeSum struct {
	Base

	qmin      float64
	qmax      float64
	qstep     float64
	precision float64
	lengths   map[string]float64

	qminPoints  int
	totalPoints int

	// per-site scattering length and its site average
	sfSite    []float64
	sfAverage float64
}

// NewDebyeSum returns a Debye sum on [0, 10] with step 0.05.
func NewDebyeSum() *DebyeSum {
	d := &DebyeSum{
		Base:      newBase(),
		qmax:      10,
		qstep:     0.05,
		precision: DefaultDebyePrecision,
	}
	d.cacheQpoints()
	d.ResetValue()
	return d
}

// SetQmin sets the lowest q point.
func (d *DebyeSum) SetQmin(q float64) error {
	if q < 0 {
		return fmt.Errorf("qmin must be non-negative, got %g", q)
	}
	d.qmin = q
	d.configChanged()
	return nil
}

// SetQmax sets the highest q point.
func (d *DebyeSum) SetQmax(q float64) error {
	if q < 0 {
		return fmt.Errorf("qmax must be non-negative, got %g", q)
	}
	d.qmax = q
	d.configChanged()
	return nil
}

// SetQstep sets the grid spacing.
func (d *DebyeSum) SetQstep(q float64) error {
	if q <= qpointEpsilon {
		return fmt.Errorf("qstep must be positive, got %g", q)
	}
	d.qstep = q
	d.configChanged()
	return nil
}

// SetDebyePrecision sets the amplitude cutoff.
func (d *DebyeSum) SetDebyePrecision(p float64) {
	d.precision = p
	d.ticker.Click()
}

// SetScatteringLengths sets the per-type scattering lengths.
func (d *DebyeSum) SetScatteringLengths(lengths map[string]float64) {
	d.lengths = make(map[string]float64, len(lengths))
	for k, v := range lengths {
		d.lengths[k] = v
	}
	d.ticker.Click()
}

func (d *DebyeSum) configChanged() {
	d.cacheQpoints()
	d.ticker.Click()
}

// SetStructure attaches s and clears the result.
func (d *DebyeSum) SetStructure(s structure.Structure) {
	d.attach(s)
	d.ResetValue()
}

// ResetValue recaches the grid and per-site data and clears the result.
func (d *DebyeSum) ResetValue() {
	d.cacheQpoints()
	d.cacheStructure()
	d.resize(d.totalPoints)
}

// AddPairContribution adds scale times the damped sine term of the
// current pair at every q point above the precision cutoff.
func (d *DebyeSum) AddPairContribution(e structure.PairEnumerator, scale int) {
	dist := e.Distance()
	if dist < distanceEpsilon {
		return
	}
	msd := e.Msd()
	f01 := d.sfSite[e.Site0()] * d.sfSite[e.Site1()]
	for kq := d.qminPoints; kq < d.totalPoints; kq++ {
		q := float64(kq) * d.qstep
		dw := math.Exp(-0.5 * msd * q * q)
		amp := dw * f01 / dist
		if math.Abs(amp) < d.precision {
			break
		}
		d.value[kq] += float64(scale) * amp * math.Sin(q*dist)
	}
}

// Qgrid returns the q values of the result points.
func (d *DebyeSum) Qgrid() []float64 {
	rv := make([]float64, d.totalPoints)
	for kq := range rv {
		rv[kq] = float64(kq) * d.qstep
	}
	return rv
}

// F returns the result normalised to the reduced structure function.
func (d *DebyeSum) F() []float64 {
	rv := d.Value()
	totocc := float64(d.countSites())
	for kq := d.qminPoints; kq < len(rv); kq++ {
		den := d.sfAverage * d.sfAverage * totocc
		if den == 0 {
			rv[kq] = 0
			continue
		}
		rv[kq] /= den
	}
	return rv
}

func (d *DebyeSum) cacheQpoints() {
	d.qminPoints = int(d.qmin / d.qstep)
	d.totalPoints = int(math.Ceil(d.qmax / d.qstep))
	// include qmax when it sits on the grid
	if math.Abs(d.qmax-float64(d.totalPoints)*d.qstep) < qpointEpsilon {
		d.totalPoints++
	}
}

func (d *DebyeSum) cacheStructure() {
	n := d.countSites()
	d.sfSite = d.sfSite[:0]
	var sum float64
	for i := 0; i < n; i++ {
		f, ok := d.lengths[d.stru.SiteType(i)]
		if !ok {
			f = 1
		}
		d.sfSite = append(d.sfSite, f)
		sum += f
	}
	d.sfAverage = 0
	if n > 0 {
		d.sfAverage = sum / float64(n)
	}
}
