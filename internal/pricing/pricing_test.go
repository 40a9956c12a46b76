package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

func TestBlackScholesCall(t *testing.T) {
	tests := []struct {
		name                       string
		strike, t, spot, vol, rate float64
		want                       float64
	}{
		{"textbook", 100, 1, 100, 0.2, 0.05, 10.450583572185565},
		{"deep in the money, high vol", 90, 9, 100, 1, 0, 87.32936756513794},
		{"deep in the money, low vol", 90, 9, 100, 0.01, 0, 10.000158644283331},
		{"default market call", 70, 9, 67.63, 1, -0.0049, 58.233843533935016},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BlackScholesCall(tt.strike, tt.t, tt.spot, tt.vol, tt.rate)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestBlackScholesCallRejectsInvalidInputs(t *testing.T) {
	tests := []struct {
		name                       string
		strike, t, spot, vol, rate float64
	}{
		{"zero vol", 90, 1, 100, 0, 0},
		{"negative vol", 90, 1, 100, -1, 0},
		{"expired", 90, 0, 100, 1, 0},
		{"zero strike", 0, 1, 100, 1, 0},
		{"zero spot", 90, 1, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BlackScholesCall(tt.strike, tt.t, tt.spot, tt.vol, tt.rate)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidOptionParameters), "got %v", err)
		})
	}
}

func TestBlackScholesCalls(t *testing.T) {
	got, err := BlackScholesCalls(90, []float64{9, 9}, []float64{100, 100}, []float64{1, 0.01}, []float64{0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 87.32936756513794, got[0], 1e-9)
	assert.InDelta(t, 10.000158644283331, got[1], 1e-9)

	_, err = BlackScholesCalls(90, []float64{9}, []float64{100, 100}, []float64{1}, []float64{0})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))

	_, err = BlackScholesCalls(90, []float64{9, 0}, []float64{100, 100}, []float64{1, 1}, []float64{0, 0})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidOptionParameters))
}

func TestBaseEngine(t *testing.T) {
	e := NewBaseEngine()
	s := scenario.New(0, map[string]float64{"A": 100, "A-volatility": 0.3, "B": 5})

	p, err := e.EquityPrice(s, "A")
	require.NoError(t, err)
	assert.Equal(t, 100.0, p)

	v, err := e.EquityVolatility(s, "A")
	require.NoError(t, err)
	assert.Equal(t, 0.3, v)

	v, err = e.EquityVolatility(s, "B")
	require.NoError(t, err)
	assert.Equal(t, DefaultEquityVolatility, v)

	_, err = e.EquityPrice(s, "C")
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingRiskFactor))
}

func TestBaseEngineFrameMatchesScalar(t *testing.T) {
	e := NewBaseEngine()
	rows := []scenario.Scenario{
		scenario.New(0, map[string]float64{"A": 100, "A-volatility": 0.3}),
		scenario.New(1, map[string]float64{"A": 101}),
	}
	f := scenario.FromScenarios(rows)

	prices, err := e.EquityPrices(f, "A")
	require.NoError(t, err)
	vols, err := e.EquityVolatilities(f, "A")
	require.NoError(t, err)
	for i, s := range rows {
		p, _ := e.EquityPrice(s, "A")
		v, _ := e.EquityVolatility(s, "A")
		assert.Equal(t, p, prices[i])
		assert.Equal(t, v, vols[i])
	}
}

func TestProxyEngineIsReproducible(t *testing.T) {
	s := scenario.New(0, scenario.DefaultMarket())
	a := NewProxyEngine(NewBaseEngine(), 7, DefaultProxyRules()...)
	b := NewProxyEngine(NewBaseEngine(), 7, DefaultProxyRules()...)

	pa, err := a.EquityPrice(s, scenario.DanskeTicker)
	require.NoError(t, err)
	pb, err := b.EquityPrice(s, scenario.DanskeTicker)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)

	again, err := a.EquityPrice(s, scenario.DanskeTicker)
	require.NoError(t, err)
	assert.Equal(t, pa, again)

	other, err := NewProxyEngine(NewBaseEngine(), 8, DefaultProxyRules()...).EquityPrice(s, scenario.DanskeTicker)
	require.NoError(t, err)
	assert.NotEqual(t, pa, other)

	nda, err := a.EquityPrice(s, scenario.NordeaTicker)
	require.NoError(t, err)
	assert.Equal(t, 67.63, nda)
}

func TestProxyResidualIsPerScenarioAndTicker(t *testing.T) {
	e := NewProxyEngine(NewBaseEngine(), 3,
		ProxyRule{Ticker: "B", Source: "A", Ratio: 1, ResidualSigma: 1},
		ProxyRule{Ticker: "C", Source: "A", Ratio: 1, ResidualSigma: 1},
	)
	market := map[string]float64{"A": 10}

	first, err := e.EquityPrice(scenario.New(4, market), "B")
	require.NoError(t, err)
	// Every position on B in scenario 4 sees the same residual
	second, err := e.EquityPrice(scenario.New(4, market), "B")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	next, err := e.EquityPrice(scenario.New(5, market), "B")
	require.NoError(t, err)
	assert.NotEqual(t, first, next)

	sibling, err := e.EquityPrice(scenario.New(4, market), "C")
	require.NoError(t, err)
	assert.NotEqual(t, first, sibling)
}

func TestProxyEngineWithoutResidual(t *testing.T) {
	e := NewProxyEngine(NewBaseEngine(), 1, ProxyRule{Ticker: "B", Source: "A", Ratio: 2})
	p, err := e.EquityPrice(scenario.New(0, map[string]float64{"A": 3}), "B")
	require.NoError(t, err)
	assert.Equal(t, 6.0, p)
}

func TestProxyEngineResidualDistribution(t *testing.T) {
	e := NewProxyEngine(NewBaseEngine(), 42, ProxyRule{Ticker: "B", Source: "A", Ratio: 1, ResidualSigma: 2})
	rows := make([]scenario.Scenario, 5000)
	for i := range rows {
		rows[i] = scenario.New(i, map[string]float64{"A": 10})
	}
	prices, err := e.EquityPrices(scenario.FromScenarios(rows), "B")
	require.NoError(t, err)

	var sum, sq float64
	for i, p := range prices {
		scalar, err := e.EquityPrice(rows[i], "B")
		require.NoError(t, err)
		assert.Equal(t, scalar, p)
		sum += p - 10
		sq += (p - 10) * (p - 10)
	}
	n := float64(len(prices))
	assert.InDelta(t, 0, sum/n, 0.1)
	assert.InDelta(t, 4, sq/n, 0.3)
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "base", "PricingEngine"} {
		e, err := New(name, 0)
		require.NoError(t, err)
		assert.Equal(t, BaseEngineName, e.Name())
	}
	for _, name := range []string{"proxy", "PricingEngineWithProxyAndResidual"} {
		e, err := New(name, 3)
		require.NoError(t, err)
		assert.Equal(t, ProxyEngineName, e.Name())
		assert.Equal(t, uint64(3), e.(*ProxyEngine).Seed())
	}
	_, err := New("quantum", 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}
