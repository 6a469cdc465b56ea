// Package model defines the core domain types shared across pairsum.
//
// Pairsum keeps a pair-sum aggregate current as its structure changes:
//
//   - An evaluator Kind selects how the aggregate is brought up to date:
//     from scratch (Basic), by applying the difference between the cached
//     and the target structure (Optimized), or both with a cross-check
//     (Check).
//
//   - A Session groups the runs of one CLI invocation.
//
//   - A Run is one completed update as recorded in the run log: which kind
//     was asked for, which path actually executed, and the resulting value.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/daviddao/pairsum/pkg/clock"
)

// Kind enumerates evaluator strategies.
type Kind int

const (
	KindNone Kind = iota
	KindBasic
	KindOptimized
	KindCheck
)

var kindNames = map[Kind]string{
	KindNone:      "none",
	KindBasic:     "basic",
	KindOptimized: "optimized",
	KindCheck:     "check",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a name such as "basic" back to its Kind. "incremental"
// and "verify" are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic":
		return KindBasic, nil
	case "optimized", "incremental":
		return KindOptimized, nil
	case "check", "verify":
		return KindCheck, nil
	}
	return KindNone, fmt.Errorf("unknown evaluator kind %q", s)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name; "none" is accepted.
func (k *Kind) UnmarshalText(b []byte) error {
	if strings.EqualFold(strings.TrimSpace(string(b)), "none") {
		*k = KindNone
		return nil
	}
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Flag enumerates evaluator configuration bits.
type Flag int

const (
	// FlagUseFullSum visits every ordered pair with scale 1 instead of
	// every unordered pair with scale 2.
	FlagUseFullSum Flag = 1 << iota
	// FlagFixedSiteIndex disallows incremental updates that shift site
	// indices.
	FlagFixedSiteIndex
)

// Run is a single entry in the append-only run log.
type Run struct {
	ID        int64       `json:"id"`
	Session   string      `json:"session"`
	Label     string      `json:"label,omitempty"`
	Frame     int         `json:"frame"`
	Requested Kind        `json:"requested"`
	Used      Kind        `json:"used"`
	Tick      clock.Stamp `json:"tick"`
	Workers   int         `json:"workers"`
	Sites     int         `json:"sites"`
	Value     []float64   `json:"value"`
	CreatedAt time.Time   `json:"created_at"`
}

// Session is one invocation that recorded runs.
type Session struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	LastSeen time.Time `json:"last_seen"`
	Runs     int64     `json:"runs"`
}
