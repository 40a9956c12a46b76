package simulation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/quant-scenario-engine/internal/portfolio"
	"github.com/rzzdr/quant-scenario-engine/internal/pricing"
	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/internal/shock"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

type fakeObserver struct {
	mu        sync.Mutex
	runs      int
	scenarios int
	failures  int
	means     map[string]float64
}

func (f *fakeObserver) RecordSimulation(_ string, scenarios int, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	f.scenarios += scenarios
	if err != nil {
		f.failures++
	}
}

func (f *fakeObserver) RecordMeanPrice(name string, mean float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.means == nil {
		f.means = make(map[string]float64)
	}
	f.means[name] = mean
}

type countingSource struct {
	scenario.Source
	mu    sync.Mutex
	calls int
}

func (c *countingSource) Scenarios() scenario.Iterator {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.Source.Scenarios()
}

func monteCarlo(t *testing.T, seed uint64) *scenario.MonteCarlo {
	t.Helper()
	mc, err := scenario.DefaultMonteCarlo(seed)
	require.NoError(t, err)
	return mc
}

func newSim(t *testing.T, opts ...Option) *Simulation {
	t.Helper()
	sim, err := New(portfolio.Default(), monteCarlo(t, scenario.DefaultSeed), pricing.NewBaseEngine(), opts...)
	require.NoError(t, err)
	return sim
}

func TestEvaluateIsCached(t *testing.T) {
	src := &countingSource{Source: monteCarlo(t, 1)}
	obs := &fakeObserver{}
	sim, err := New(portfolio.Default(), src, pricing.NewBaseEngine(), WithScenarioCount(20), WithRecorder(obs), WithName("base"))
	require.NoError(t, err)
	assert.Equal(t, Unevaluated, sim.State())

	first, err := sim.Evaluate(context.Background())
	require.NoError(t, err)
	second, err := sim.Evaluate(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, Evaluated, sim.State())
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 20, first.Len())
	assert.Equal(t, 1, obs.runs)
	assert.Equal(t, 20, obs.scenarios)
	assert.Contains(t, obs.means, "base")
}

func TestWithMethodsReturnFreshCopies(t *testing.T) {
	sim := newSim(t, WithScenarioCount(10))
	_, err := sim.Evaluate(context.Background())
	require.NoError(t, err)

	shocked := sim.WithShock(shock.Absolute(scenario.DanskeTicker, 100))
	assert.Equal(t, Evaluated, sim.State())
	assert.Equal(t, Unevaluated, shocked.State())
	assert.Equal(t, "identity", sim.Shock().String())

	for _, c := range []*Simulation{
		sim.Clone(),
		sim.WithPortfolio(portfolio.NewPortfolio()),
		sim.WithEngine(pricing.NewBaseEngine()),
		sim.WithSource(monteCarlo(t, 2)),
		sim.WithStrategy(Vectorized),
		sim.WithScenarioCount(5),
		sim.WithName("other"),
	} {
		assert.Equal(t, Unevaluated, c.State())
	}

	base, err := sim.Summary(context.Background())
	require.NoError(t, err)
	stressed, err := shocked.Summary(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, base.Mean-10*(106.1-100), stressed.Mean, 15)
}

func TestStrategiesAgree(t *testing.T) {
	engines := map[string]pricing.Engine{
		"base":  pricing.NewBaseEngine(),
		"proxy": pricing.NewProxyEngine(pricing.NewBaseEngine(), 11, pricing.DefaultProxyRules()...),
	}
	sh := shock.Combine(shock.Relative(scenario.NordeaTicker, 0.99), shock.Scale(0.5, shock.Absolute(scenario.DanskeTicker, 100)))

	for name, e := range engines {
		t.Run(name, func(t *testing.T) {
			sim, err := New(portfolio.Default(), monteCarlo(t, 3), e, WithScenarioCount(50), WithShock(sh))
			require.NoError(t, err)

			want, err := sim.Prices(context.Background())
			require.NoError(t, err)
			require.Len(t, want, 50)

			variants := map[string]*Simulation{
				"vectorized": sim.WithStrategy(Vectorized),
			}
			for _, size := range []int{1, 7, 50, 51, 1000} {
				for _, workers := range []int{1, 4} {
					c := sim.WithStrategy(Batched)
					c.batchSize, c.workers = size, workers
					variants[fmt.Sprintf("batched/%d/%d", size, workers)] = c
				}
			}
			for label, v := range variants {
				got, err := v.Prices(context.Background())
				require.NoError(t, err, label)
				require.Len(t, got, len(want), label)
				for i := range want {
					assert.InDelta(t, want[i], got[i], 1e-9, "%s row %d", label, i)
				}
			}
		})
	}
}

func TestFiniteSourceWithZeroCountUsesAllRows(t *testing.T) {
	rows := scenario.Slice{
		scenario.New(0, scenario.DefaultMarket()),
		scenario.New(1, scenario.DefaultMarket()),
		scenario.New(2, scenario.DefaultMarket()),
	}
	sim, err := New(portfolio.Default(), rows, pricing.NewBaseEngine())
	require.NoError(t, err)

	prices, err := sim.Prices(context.Background())
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.InDelta(t, 7882.233843533935, prices[0], 1e-6)

	sum, err := sim.Summary(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0, sum.StdDev, 1e-9)
}

func TestInfiniteSourceNeedsCount(t *testing.T) {
	sim := newSim(t)
	_, err := sim.Evaluate(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
	assert.Equal(t, Unevaluated, sim.State())
}

func TestEvaluationErrorIsCached(t *testing.T) {
	obs := &fakeObserver{}
	sim := newSim(t, WithScenarioCount(5), WithRecorder(obs), WithShock(shock.Relative("MISSING", 2)))

	_, err := sim.Evaluate(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingRiskFactor))
	_, again := sim.Evaluate(context.Background())
	assert.Equal(t, err, again)
	assert.Equal(t, Evaluated, sim.State())
	assert.Equal(t, 1, obs.failures)

	for _, strategy := range []Strategy{Vectorized, Batched} {
		_, err := sim.WithStrategy(strategy).Evaluate(context.Background())
		assert.True(t, errors.IsType(err, errors.ErrorTypeMissingRiskFactor), strategy.String())
	}
}

func TestCancelledEvaluationIsNotCached(t *testing.T) {
	sim := newSim(t, WithScenarioCount(100))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Evaluate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Unevaluated, sim.State())

	r, err := sim.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, r.Len())
}

func TestNewValidates(t *testing.T) {
	mc := monteCarlo(t, 1)
	e := pricing.NewBaseEngine()
	p := portfolio.Default()

	tests := []struct {
		name string
		fn   func() (*Simulation, error)
	}{
		{"no portfolio", func() (*Simulation, error) { return New(nil, mc, e) }},
		{"no source", func() (*Simulation, error) { return New(p, nil, e) }},
		{"no engine", func() (*Simulation, error) { return New(p, mc, nil) }},
		{"negative count", func() (*Simulation, error) { return New(p, mc, e, WithScenarioCount(-1)) }},
		{"zero batch", func() (*Simulation, error) { return New(p, mc, e, WithBatchSize(0)) }},
		{"zero workers", func() (*Simulation, error) { return New(p, mc, e, WithWorkers(0)) }},
		{"bad strategy", func() (*Simulation, error) { return New(p, mc, e, WithStrategy("warp")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument), "got %v", err)
		})
	}
}

func TestCopiesAreValidatedOnEvaluate(t *testing.T) {
	sim := newSim(t, WithScenarioCount(5))
	ctx := context.Background()

	tests := []struct {
		name string
		sim  *Simulation
	}{
		{"unknown strategy", sim.WithStrategy(Strategy("bogus"))},
		{"nil portfolio", sim.WithPortfolio(nil)},
		{"nil engine", sim.WithEngine(nil)},
		{"nil source", sim.WithSource(nil)},
		{"negative count", sim.WithScenarioCount(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices, err := tt.sim.Prices(ctx)
			assert.Nil(t, prices)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument), "got %v", err)
			assert.Equal(t, Unevaluated, tt.sim.State())
		})
	}

	spelled := sim.WithStrategy(Strategy("Vectorised"))
	rep, err := spelled.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vectorized", rep.Strategy)
}

func TestEmptyFiniteSourceAgreesAcrossStrategies(t *testing.T) {
	for _, strategy := range []Strategy{PerScenario, Vectorized, Batched} {
		sim, err := New(portfolio.Default(), scenario.Slice{}, pricing.NewBaseEngine(), WithStrategy(strategy))
		require.NoError(t, err)

		prices, err := sim.Prices(context.Background())
		require.NoError(t, err, strategy.String())
		assert.Empty(t, prices, strategy.String())

		_, err = sim.Summary(context.Background())
		assert.Error(t, err, strategy.String())
	}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"":             PerScenario,
		"PerScenario":  PerScenario,
		"per-scenario": PerScenario,
		"Vectorized":   Vectorized,
		"batched":      Batched,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestSummary(t *testing.T) {
	r := newResult([]float64{1, 2, 3, 4})
	sum, err := r.Summary()
	require.NoError(t, err)
	assert.Equal(t, Summary{Count: 4, Mean: 2.5, Min: 1, Max: 4, StdDev: math.Sqrt(1.25)}, sum)

	_, err = newResult(nil).Summary()
	assert.Error(t, err)
}

func TestTailRisk(t *testing.T) {
	prices := make([]float64, 100)
	for i := range prices {
		prices[i] = float64(i + 1)
	}
	risk, err := newResult(prices).TailRisk(0.75)
	require.NoError(t, err)
	assert.InDelta(t, 25.5, risk.VaR, 1e-9)
	assert.InDelta(t, 37.5, risk.ES, 1e-9)
	assert.GreaterOrEqual(t, risk.ES, risk.VaR)

	_, err = newResult(prices).TailRisk(1)
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	sim := newSim(t, WithScenarioCount(30), WithName("baseline"), WithStrategy(Vectorized))
	rep, err := sim.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "baseline", rep.Name)
	assert.Equal(t, "vectorized", rep.Strategy)
	assert.Equal(t, pricing.BaseEngineName, rep.Engine)
	assert.Equal(t, 30, rep.Summary.Count)
	assert.Equal(t, DefaultConfidence, rep.Risk.Confidence)

	at, err := sim.ReportAt(context.Background(), 0.9)
	require.NoError(t, err)
	assert.Equal(t, 0.9, at.Risk.Confidence)
	assert.Equal(t, rep.Summary, at.Summary)
}

func TestExperiment(t *testing.T) {
	baseline := newSim(t, WithScenarioCount(40))
	proxied := baseline.WithEngine(pricing.NewProxyEngine(pricing.NewBaseEngine(), 2, pricing.DefaultProxyRules()...))

	rows, err := NewExperiment().
		WithModel("Baseline", baseline).
		WithModel("Modified pricing", proxied).
		WithShock("-", shock.Identity()).
		WithShock("Danske Bank = 100", shock.Absolute(scenario.DanskeTicker, 100)).
		WithShock("Banks -100bps", shock.Relative(scenario.NordeaTicker, 0.99)).
		WithConcurrency(3).
		Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 6)

	assert.Equal(t, "Baseline", rows[0].Model)
	assert.Equal(t, "-", rows[0].Shock)
	assert.Equal(t, "Modified pricing", rows[5].Model)
	assert.Equal(t, "Banks -100bps", rows[5].Shock)
	assert.Equal(t, Unevaluated, baseline.State())

	want, err := baseline.Clone().Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, rows[0].Summary)

	_, err = NewExperiment().Run(context.Background())
	assert.Error(t, err)
}
