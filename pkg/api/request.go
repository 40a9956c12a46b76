package api

import (
	"fmt"

	"github.com/rzzdr/quant-scenario-engine/internal/portfolio"
	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/internal/shock"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// PriceRequest prices a portfolio under a single snapshot
type PriceRequest struct {
	Portfolio  map[string]any     `json:"portfolio"`
	Scenario   map[string]float64 `json:"scenario"`
	Engine     string             `json:"engine"`
	EngineSeed uint64             `json:"engine_seed"`
	Shocks     []shock.Definition `json:"shocks"`
}

// ScenarioRequest describes the scenario source of a simulation: explicit rows,
// or a Monte Carlo generator that defaults to the reference market.
type ScenarioRequest struct {
	Rows       []map[string]float64 `json:"rows"`
	Mean       map[string]float64   `json:"mean"`
	Covariance [][]float64          `json:"covariance"`
	Keys       []string             `json:"keys"`
	Seed       *uint64              `json:"seed"`
	Count      int                  `json:"count"`
}

// SimulationRequest configures and runs a simulation
type SimulationRequest struct {
	Name       string             `json:"name"`
	Portfolio  map[string]any     `json:"portfolio"`
	Engine     string             `json:"engine"`
	EngineSeed uint64             `json:"engine_seed"`
	Scenarios  ScenarioRequest    `json:"scenarios"`
	Strategy   string             `json:"strategy"`
	BatchSize  int                `json:"batch_size"`
	Workers    int                `json:"workers"`
	Shocks     []shock.Definition `json:"shocks"`
}

func decodePortfolio(m map[string]any) (portfolio.Asset, error) {
	if m == nil {
		return portfolio.Default(), nil
	}
	return portfolio.Decode(m)
}

func (r ScenarioRequest) source() (scenario.Source, error) {
	if len(r.Rows) > 0 {
		rows := make(scenario.Slice, len(r.Rows))
		for i, values := range r.Rows {
			rows[i] = scenario.New(i, values)
		}
		return rows, nil
	}

	seed := scenario.DefaultSeed
	if r.Seed != nil {
		seed = *r.Seed
	}

	mean, keys, cov := r.Mean, r.Keys, r.Covariance
	if mean == nil {
		mean = scenario.DefaultMarket()
		if keys == nil && cov == nil {
			keys, cov = scenario.DefaultKeys(), scenario.DefaultCovariance()
		}
	}
	return scenario.NewMonteCarlo(mean, cov, keys, seed)
}

func checkCount(count, limit int) error {
	if count < 0 {
		return errors.InvalidArgument("scenario count must not be negative")
	}
	if limit > 0 && count > limit {
		return errors.InvalidArgument(fmt.Sprintf("scenario count %d exceeds the limit of %d", count, limit))
	}
	return nil
}
