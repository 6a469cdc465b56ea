package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/daviddao/pairsum/pkg/evaluator"
	"github.com/daviddao/pairsum/pkg/model"
	"github.com/daviddao/pairsum/pkg/parallel"
	"github.com/daviddao/pairsum/pkg/quantity"
	"github.com/daviddao/pairsum/pkg/structure"
)

// job is a YAML evaluation job: a quantity and the frames to evaluate in
// order. Command-line flags override the evaluator settings.
type job struct {
	Label       string         `yaml:"label"`
	Mode        string         `yaml:"mode"`
	Workers     int            `yaml:"workers"`
	FullSum     bool           `yaml:"fullsum"`
	FixedIndex  bool           `yaml:"fixed_index"`
	IncludeSelf bool           `yaml:"include_self"`
	Quantity    quantityConfig `yaml:"quantity"`
	Frames      []frameConfig  `yaml:"frames"`
}

type frameConfig struct {
	Sites []structure.Site `yaml:"sites"`
}

// quantityConfig selects and configures the host.
type quantityConfig struct {
	// debye, pairsum or bonds
	Type string `yaml:"type"`
	// pairsum only: inverse-distance, count or coulomb
	Function string             `yaml:"function"`
	Charges  map[string]float64 `yaml:"charges"`

	Rmin *float64 `yaml:"rmin"`
	Rmax *float64 `yaml:"rmax"`

	Qmin      *float64           `yaml:"qmin"`
	Qmax      *float64           `yaml:"qmax"`
	Qstep     *float64           `yaml:"qstep"`
	Precision *float64           `yaml:"precision"`
	Lengths   map[string]float64 `yaml:"lengths"`

	ExcludeTypes [][2]string `yaml:"exclude_types"`
	ExcludePairs [][2]int    `yaml:"exclude_pairs"`
}

var errNoFrames = errors.New("job has no frames")

// loadJob reads and validates a job file.
func loadJob(path string) (*job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseJob(data)
}

func parseJob(data []byte) (*job, error) {
	j := &job{Mode: "optimized", Workers: 1}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(j); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	if len(j.Frames) == 0 {
		return nil, errNoFrames
	}
	if _, err := j.Quantity.build(); err != nil {
		return nil, err
	}
	return j, nil
}

// structures returns one structure per frame.
func (j *job) structures() []structure.Structure {
	rv := make([]structure.Structure, len(j.Frames))
	for i, f := range j.Frames {
		a := structure.NewAtoms(f.Sites...)
		a.IncludeSelf = j.IncludeSelf
		rv[i] = a
	}
	return rv
}

// flags returns the evaluator flags the job asks for.
func (j *job) flags() []model.Flag {
	var rv []model.Flag
	if j.FullSum {
		rv = append(rv, model.FlagUseFullSum)
	}
	if j.FixedIndex {
		rv = append(rv, model.FlagFixedSiteIndex)
	}
	return rv
}

// configurable is the host configuration surface shared by all hosts.
type configurable interface {
	evaluator.Host
	SetRmin(float64) error
	SetRmax(float64) error
	SetTypeMask(t0, t1 string, on bool)
	SetPairMask(i, j int, on bool)
}

// factory returns a host factory for the pool. parseJob has already
// checked that build succeeds.
func (q quantityConfig) factory() parallel.HostFactory {
	return func() evaluator.Host {
		h, _ := q.build()
		return h
	}
}

func (q quantityConfig) build() (evaluator.Host, error) {
	var h configurable
	switch strings.ToLower(q.Type) {
	case "debye", "":
		d := quantity.NewDebyeSum()
		if err := q.configureDebye(d); err != nil {
			return nil, err
		}
		h = d
	case "pairsum":
		fn, err := q.pairFunc()
		if err != nil {
			return nil, err
		}
		h = quantity.NewPairSum(fn)
	case "bonds":
		rmax := 5.0
		if q.Rmax != nil {
			rmax = *q.Rmax
		}
		h = quantity.NewBondCalculator(rmax)
	default:
		return nil, fmt.Errorf("unknown quantity type %q", q.Type)
	}

	if q.Rmin != nil {
		if err := h.SetRmin(*q.Rmin); err != nil {
			return nil, err
		}
	}
	if q.Rmax != nil {
		if err := h.SetRmax(*q.Rmax); err != nil {
			return nil, err
		}
	}
	for _, t := range q.ExcludeTypes {
		h.SetTypeMask(t[0], t[1], false)
	}
	for _, p := range q.ExcludePairs {
		if p[0] < 0 || p[1] < 0 {
			return nil, fmt.Errorf("negative site index in excluded pair %v", p)
		}
		h.SetPairMask(p[0], p[1], false)
	}
	return h, nil
}

func (q quantityConfig) configureDebye(d *quantity.DebyeSum) error {
	if q.Qmax != nil {
		if err := d.SetQmax(*q.Qmax); err != nil {
			return err
		}
	}
	if q.Qmin != nil {
		if err := d.SetQmin(*q.Qmin); err != nil {
			return err
		}
	}
	if q.Qstep != nil {
		if err := d.SetQstep(*q.Qstep); err != nil {
			return err
		}
	}
	if q.Precision != nil {
		d.SetDebyePrecision(*q.Precision)
	}
	if len(q.Lengths) > 0 {
		d.SetScatteringLengths(q.Lengths)
	}
	return nil
}

func (q quantityConfig) pairFunc() (quantity.PairFunc, error) {
	switch strings.ToLower(q.Function) {
	case "inverse-distance", "":
		return quantity.InverseDistance, nil
	case "count":
		return quantity.PairCount, nil
	case "coulomb":
		if len(q.Charges) == 0 {
			return nil, errors.New("coulomb pair sum needs charges")
		}
		return quantity.Coulomb(q.Charges), nil
	}
	return nil, fmt.Errorf("unknown pair function %q", q.Function)
}
