package simulation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rzzdr/quant-scenario-engine/internal/shock"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// ExperimentRow is one cell of an experiment grid
type ExperimentRow struct {
	Model   string  `json:"model"`
	Shock   string  `json:"shock"`
	Summary Summary `json:"summary"`
}

type namedModel struct {
	name string
	sim  *Simulation
}

type namedShock struct {
	name  string
	shock shock.Shock
}

// Experiment evaluates every model under every shock
type Experiment struct {
	models      []namedModel
	shocks      []namedShock
	concurrency int
}

// NewExperiment creates an empty grid evaluated sequentially
func NewExperiment() *Experiment {
	return &Experiment{concurrency: 1}
}

// WithModel adds a model row
func (e *Experiment) WithModel(name string, sim *Simulation) *Experiment {
	e.models = append(e.models, namedModel{name: name, sim: sim})
	return e
}

// WithShock adds a shock column
func (e *Experiment) WithShock(name string, s shock.Shock) *Experiment {
	e.shocks = append(e.shocks, namedShock{name: name, shock: s})
	return e
}

// WithConcurrency bounds how many cells are evaluated at once
func (e *Experiment) WithConcurrency(n int) *Experiment {
	if n > 0 {
		e.concurrency = n
	}
	return e
}

// Run evaluates the grid. Rows are ordered shock-major, then by model, as added.
// The registered simulations are never evaluated; every cell works on a clone.
func (e *Experiment) Run(ctx context.Context) ([]ExperimentRow, error) {
	if len(e.models) == 0 || len(e.shocks) == 0 {
		return nil, errors.InvalidArgument("experiment needs at least one model and one shock")
	}

	rows := make([]ExperimentRow, len(e.models)*len(e.shocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, sh := range e.shocks {
		for j, m := range e.models {
			idx := i*len(e.models) + j
			cell := m.sim.WithShock(sh.shock).WithName(m.name)
			g.Go(func() error {
				sum, err := cell.Summary(gctx)
				if err != nil {
					return errors.Wrapf(err, "model %q under shock %q", m.name, sh.name)
				}
				rows[idx] = ExperimentRow{Model: m.name, Shock: sh.name, Summary: sum}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
