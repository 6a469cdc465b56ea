// Package evaluator brings a pair-sum host up to date with a structure.
//
// Three strategies share one interface:
//
//	Basic:       recompute the sum over all pairs from scratch.
//	Incremental: subtract the pairs of removed sites and add the pairs of
//	             added sites, falling back to Basic when that is unsafe or
//	             not cheaper.
//	Verifying:   run Incremental, then Basic, and fail if they disagree.
//
// Evaluators never start goroutines. Parallel runs call each worker's
// evaluator with its own (index, count) and its own host; each worker
// walks the whole iteration space and executes every count-th unit of
// work, starting at index. Partial host values are summed by the caller.
// Floating-point addition is not associative, so results for different
// worker counts match only up to rounding, not bit for bit.
//
// Note: an Evaluator is not goroutine-safe. Use one per worker.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daviddao/pairsum/pkg/clock"
	"github.com/daviddao/pairsum/pkg/model"
	"github.com/daviddao/pairsum/pkg/quantity"
	"github.com/daviddao/pairsum/pkg/structure"
)

// Host is the aggregate being computed.
type Host interface {
	// Ticker records the last configuration change of the host.
	Ticker() clock.Ticker
	Structure() structure.Structure
	// SetStructure attaches s and resets the value to its shape.
	SetStructure(s structure.Structure)

	HasMask() bool
	// HasPairMask reports masks keyed by site index.
	HasPairMask() bool
	// IndexKeyed reports state that names sites by index, such as pair
	// masks or recorded bonds. It only stays valid while no site moves.
	IndexKeyed() bool
	PairMask(i, j int) bool
	ConfigureBonds(e structure.PairEnumerator)

	// AddPairContribution adds scale times the contribution of the
	// current pair of e.
	AddPairContribution(e structure.PairEnumerator, scale int)
	StashPartialValue()
	RestorePartialValue()
	Value() []float64
}

// BondInspector is implemented by hosts that expose the individual pairs
// behind their value. Checking evaluators compare them too.
type BondInspector interface {
	Bonds() []quantity.Bond
}

// Evaluator updates a Host for a target structure.
type Evaluator interface {
	// Kind is the strategy of the evaluator.
	Kind() model.Kind
	// KindUsed is the strategy that executed the last update.
	KindUsed() model.Kind
	// UpdateValue makes h current for s.
	UpdateValue(h Host, s structure.Structure) error

	SetFlag(f model.Flag, on bool)
	Flag(f model.Flag) bool
	// SetupParallel assigns this evaluator the worker slot index of count.
	SetupParallel(index, count int) error
	IsParallel() bool
	// Ticker records when the evaluator last produced a value.
	Ticker() clock.Ticker

	cfg() *settings
}

// cpuLoadVariance is the tolerated load imbalance between workers when
// the outer loop over anchor sites is split.
const cpuLoadVariance = 0.1

// settings is the state shared by all strategies and transplanted by New.
type settings struct {
	flags       model.Flag
	cpuIndex    int
	ncpu        int
	valueTicker clock.Ticker
	typeUsed    model.Kind
	logger      *slog.Logger
}

func defaultSettings() settings {
	return settings{ncpu: 1, logger: slog.Default()}
}

func (c *settings) cfg() *settings { return c }

// KindUsed returns the strategy that executed the last update.
func (c *settings) KindUsed() model.Kind { return c.typeUsed }

// Ticker returns the value ticker.
func (c *settings) Ticker() clock.Ticker { return c.valueTicker }

// SetFlag turns a configuration flag on or off.
func (c *settings) SetFlag(f model.Flag, on bool) {
	if on {
		c.flags |= f
	} else {
		c.flags &^= f
	}
}

// Flag reports whether a configuration flag is on.
func (c *settings) Flag(f model.Flag) bool { return c.flags&f != 0 }

// SetupParallel assigns the worker slot. count below 1 is rejected and
// leaves the previous setup in place.
func (c *settings) SetupParallel(index, count int) error {
	if count < 1 {
		return fmt.Errorf("setup parallel (%d of %d): %w", index, count, ErrInvalidWorkerCount)
	}
	if index < 0 || index >= count {
		return fmt.Errorf("setup parallel (%d of %d): %w", index, count, ErrInvalidWorkerIndex)
	}
	c.cpuIndex = index
	c.ncpu = count
	return nil
}

// IsParallel reports whether work is split across more than one worker.
func (c *settings) IsParallel() bool { return c.ncpu > 1 }

// claim advances the striding counter and reports whether the unit of
// work it numbered belongs to this worker.
func (c *settings) claim(n *int64) bool {
	k := *n
	*n++
	return k%int64(c.ncpu) == 0
}

// observe runs fn and records metrics for one UpdateValue call.
func (c *settings) observe(requested model.Kind, fn func() error) error {
	start := time.Now()
	err := fn()
	recordEvaluation(context.Background(), requested, c.typeUsed, time.Since(start), err != nil)
	return err
}

// Option configures an evaluator.
type Option func(*settings)

// WithLogger sets the logger used for fallback and fault reports.
func WithLogger(l *slog.Logger) Option {
	return func(c *settings) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFlags turns the given flags on.
func WithFlags(flags ...model.Flag) Option {
	return func(c *settings) {
		for _, f := range flags {
			c.flags |= f
		}
	}
}

// New creates an evaluator of the given kind. When prev is non-nil its
// flags, worker slot, value ticker and last used kind carry over, so a
// host may switch strategy without appearing changed. The structure cache
// of an incremental prev is never carried over. Options apply after the
// transplant.
func New(kind model.Kind, prev Evaluator, opts ...Option) (Evaluator, error) {
	var rv Evaluator
	switch kind {
	case model.KindBasic:
		rv = &Basic{settings: defaultSettings()}
	case model.KindOptimized:
		rv = &Incremental{Basic: Basic{settings: defaultSettings()}}
	case model.KindCheck:
		rv = &Verifying{Incremental: Incremental{Basic: Basic{settings: defaultSettings()}}}
	default:
		return nil, fmt.Errorf("new evaluator %v: %w", kind, ErrInvalidKind)
	}
	c := rv.cfg()
	if prev != nil {
		p := prev.cfg()
		c.flags = p.flags
		c.cpuIndex = p.cpuIndex
		c.ncpu = p.ncpu
		c.valueTicker = p.valueTicker
		c.typeUsed = p.typeUsed
		c.logger = p.logger
	}
	for _, opt := range opts {
		opt(c)
	}
	return rv, nil
}
