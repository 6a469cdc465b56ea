// Package parallel runs one evaluator per worker and merges their partial
// host values.
//
// Each worker owns an evaluator set up for its slot and a private host.
// Workers never share mutable state; the structure passed to Update is
// only read. After every worker finished, partial values are summed and
// the pool ticker is clicked once.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/daviddao/pairsum/pkg/clock"
	"github.com/daviddao/pairsum/pkg/evaluator"
	"github.com/daviddao/pairsum/pkg/model"
	"github.com/daviddao/pairsum/pkg/structure"
)

// ErrNotAdditive is returned for hosts whose partial values cannot be
// merged by summation.
var ErrNotAdditive = errors.New("host value is not additive")

// HostFactory builds one identically configured host per call.
type HostFactory func() evaluator.Host

type worker struct {
	eval evaluator.Evaluator
	host evaluator.Host
}

// Pool evaluates a structure with several workers.
type Pool struct {
	kind    model.Kind
	workers []worker
	mk      HostFactory
	// check is the single-worker reference used by KindCheck pools.
	check  evaluator.Host
	ticker clock.Ticker
	value  []float64
	logger *slog.Logger
}

// New returns a pool of n workers using strategy kind. opts apply to every
// worker's evaluator.
func New(kind model.Kind, n int, mk HostFactory, opts ...evaluator.Option) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("new pool of %d: %w", n, evaluator.ErrInvalidWorkerCount)
	}
	p := &Pool{kind: kind, mk: mk, logger: slog.Default(), workers: make([]worker, n)}
	for i := range p.workers {
		e, err := evaluator.New(kind, nil, opts...)
		if err != nil {
			return nil, err
		}
		if err := e.SetupParallel(i, n); err != nil {
			return nil, err
		}
		h := mk()
		if _, ok := h.(evaluator.BondInspector); ok && n > 1 {
			return nil, fmt.Errorf("new pool of %d: %w", n, ErrNotAdditive)
		}
		p.workers[i] = worker{eval: e, host: h}
	}
	if kind == model.KindCheck && n > 1 {
		p.check = mk()
	}
	return p, nil
}

// SetLogger sets the logger for pool level reports.
func (p *Pool) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
	}
}

// Workers returns the number of workers.
func (p *Pool) Workers() int { return len(p.workers) }

// Kind returns the strategy of the workers.
func (p *Pool) Kind() model.Kind { return p.kind }

// KindUsed returns the strategy that executed the last update. Workers see
// the same diff and host configuration, so they agree on it.
func (p *Pool) KindUsed() model.Kind { return p.workers[0].eval.KindUsed() }

// Ticker returns the pool ticker, clicked once per merged update.
func (p *Pool) Ticker() clock.Ticker { return p.ticker }

// Value returns the merged value of the last update.
func (p *Pool) Value() []float64 { return append([]float64(nil), p.value...) }

// Host returns the host of worker i. With a single worker it holds the
// complete result.
func (p *Pool) Host(i int) evaluator.Host { return p.workers[i].host }

// SetFlag sets a flag on every worker.
func (p *Pool) SetFlag(f model.Flag, on bool) {
	for _, w := range p.workers {
		w.eval.SetFlag(f, on)
	}
}

// Reconfigure applies fn to every host, including the reference host of a
// checking pool.
func (p *Pool) Reconfigure(fn func(evaluator.Host) error) error {
	for i, w := range p.workers {
		if err := fn(w.host); err != nil {
			return fmt.Errorf("reconfigure worker %d: %w", i, err)
		}
	}
	if p.check != nil {
		if err := fn(p.check); err != nil {
			return fmt.Errorf("reconfigure reference: %w", err)
		}
	}
	return nil
}

// Update brings every worker up to date for s and merges the partial
// values. On error the merged value and the pool ticker are left as they
// were.
func (p *Pool) Update(ctx context.Context, s structure.Structure) error {
	g, gCtx := errgroup.WithContext(ctx)
	for i := range p.workers {
		i, w := i, p.workers[i]
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			if err := w.eval.UpdateValue(w.host, s); err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	merged, err := p.merge()
	if err != nil {
		return err
	}
	if p.check != nil && p.KindUsed() != model.KindBasic {
		if err := p.verify(s, merged); err != nil {
			return err
		}
	}
	p.value = merged
	p.ticker.Click()
	return nil
}

func (p *Pool) merge() ([]float64, error) {
	rv := p.workers[0].host.Value()
	for i, w := range p.workers[1:] {
		part := w.host.Value()
		if len(part) != len(rv) {
			return nil, fmt.Errorf("worker %d value length %d, want %d: %w",
				i+1, len(part), len(rv), ErrNotAdditive)
		}
		for k, x := range part {
			rv[k] += x
		}
	}
	return rv, nil
}

// verify recomputes s on the reference host with a single basic worker.
func (p *Pool) verify(s structure.Structure, merged []float64) error {
	ref := evaluator.NewBasic()
	if p.workers[0].eval.Flag(model.FlagUseFullSum) {
		ref.SetFlag(model.FlagUseFullSum, true)
	}
	if err := ref.UpdateValue(p.check, s); err != nil {
		return err
	}
	if err := evaluator.CompareValues(merged, p.check.Value()); err != nil {
		p.logger.Error("merged optimized evaluation diverged",
			slog.Int("workers", len(p.workers)), slog.String("error", err.Error()))
		return err
	}
	return nil
}
