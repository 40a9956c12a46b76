package main

import (
	"github.com/rzzdr/quant-scenario-engine/config"
	"github.com/rzzdr/quant-scenario-engine/internal/portfolio"
	"github.com/rzzdr/quant-scenario-engine/internal/pricing"
	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/internal/shock"
	"github.com/rzzdr/quant-scenario-engine/internal/simulation"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

func newSource(cfg config.SimulationConfig) (scenario.Source, error) {
	if cfg.IsGenerated() {
		return scenario.DefaultMonteCarlo(cfg.Seed)
	}
	return scenario.FromFile(cfg.Scenarios)
}

func loadPortfolio(path string) (portfolio.Asset, error) {
	if path == "" {
		return portfolio.Default(), nil
	}
	return portfolio.LoadFile(path)
}

// buildSimulation assembles the configured simulation. obs may be nil.
func buildSimulation(cfg config.SimulationConfig, obs simulation.Observer) (*simulation.Simulation, error) {
	src, err := newSource(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "scenarios %q", cfg.Scenarios)
	}
	asset, err := loadPortfolio(cfg.Portfolio)
	if err != nil {
		return nil, errors.Wrapf(err, "portfolio %q", cfg.Portfolio)
	}
	engine, err := pricing.New(cfg.PricingEngine, cfg.EngineSeed)
	if err != nil {
		return nil, err
	}
	sh, err := shock.BuildAll(cfg.Shocks)
	if err != nil {
		return nil, err
	}
	strategy, err := simulation.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	opts := []simulation.Option{
		simulation.WithName(engine.Name()),
		simulation.WithShock(sh),
		simulation.WithScenarioCount(cfg.MaxNumberOfScenarios),
		simulation.WithStrategy(strategy),
		simulation.WithBatchSize(cfg.BatchSize),
		simulation.WithWorkers(cfg.Workers),
	}
	if obs != nil {
		opts = append(opts, simulation.WithRecorder(obs))
	}
	return simulation.New(asset, src, engine, opts...)
}

// buildExperiment compares the configured simulation against the proxy engine
// under the preset stress shocks.
func buildExperiment(sim *simulation.Simulation, engineSeed uint64, concurrency int) (*simulation.Experiment, error) {
	proxied := sim.WithEngine(pricing.NewProxyEngine(pricing.NewBaseEngine(), engineSeed, pricing.DefaultProxyRules()...))

	e := simulation.NewExperiment().
		WithModel("Baseline", sim).
		WithModel("Modified pricing", proxied).
		WithConcurrency(concurrency)

	for _, p := range []struct{ label, preset string }{
		{"-", "none"},
		{"Danske Bank = 100", "danske-100"},
		{"Banks -100bps", "banks-minus-1pct"},
	} {
		sh, err := shock.Named(p.preset)
		if err != nil {
			return nil, err
		}
		e = e.WithShock(p.label, sh)
	}
	return e, nil
}
