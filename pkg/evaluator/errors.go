package evaluator

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWorkerCount is returned by SetupParallel for counts below 1.
	ErrInvalidWorkerCount = errors.New("worker count must be at least 1")

	// ErrInvalidWorkerIndex is returned by SetupParallel for an index
	// outside [0, count).
	ErrInvalidWorkerIndex = errors.New("worker index out of range")

	// ErrInvalidKind is returned by New for unknown kinds.
	ErrInvalidKind = errors.New("invalid evaluator kind")

	// ErrNilStructure is returned by UpdateValue without a structure.
	ErrNilStructure = errors.New("no structure to evaluate")

	// ErrInconsistent marks a divergence between the optimized and the
	// basic evaluation. It is an internal correctness fault; the host
	// value must not be trusted after it.
	ErrInconsistent = errors.New("inconsistent results from optimized evaluation")
)

// InconsistencyError describes the first divergence found by a checking
// evaluator. It wraps ErrInconsistent.
type InconsistencyError struct {
	// What diverged: "length", "value" or "bonds".
	Field     string
	Index     int
	Optimized float64
	Basic     float64
	Tolerance float64
	Detail    string
}

func (e *InconsistencyError) Error() string {
	switch e.Field {
	case "value":
		return fmt.Sprintf("%v: value[%d] optimized=%g basic=%g tolerance=%g",
			ErrInconsistent, e.Index, e.Optimized, e.Basic, e.Tolerance)
	case "length":
		return fmt.Sprintf("%v: length optimized=%d basic=%d",
			ErrInconsistent, int(e.Optimized), int(e.Basic))
	}
	return fmt.Sprintf("%v: %s[%d] %s", ErrInconsistent, e.Field, e.Index, e.Detail)
}

func (e *InconsistencyError) Unwrap() error { return ErrInconsistent }
