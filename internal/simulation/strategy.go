package simulation

import (
	"fmt"
	"strings"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// Strategy selects how scenarios are pushed through the shock and the portfolio.
// Every strategy produces the same price vector.
type Strategy string

const (
	// PerScenario shocks and prices one snapshot at a time
	PerScenario Strategy = "per_scenario"
	// Vectorized materializes every snapshot into one frame
	Vectorized Strategy = "vectorized"
	// Batched prices frames of BatchSize snapshots, optionally in parallel
	Batched Strategy = "batched"
)

// ParseStrategy accepts the canonical names and a few spellings found in configuration files
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s))) {
	case "", "per_scenario", "perscenario", "scalar":
		return PerScenario, nil
	case "vectorized", "vectorised", "vector":
		return Vectorized, nil
	case "batched", "batch", "chunked":
		return Batched, nil
	}
	return "", errors.InvalidArgument(fmt.Sprintf("unknown evaluation strategy %q", s))
}

func (s Strategy) String() string { return string(s) }
