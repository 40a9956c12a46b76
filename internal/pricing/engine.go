// Package pricing computes equity and option values from market snapshots.
package pricing

import (
	"fmt"
	"strings"

	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// DefaultEquityVolatility is used when a snapshot has no volatility for a ticker
const DefaultEquityVolatility = 1.0

// Engine turns snapshot values into prices. The frame methods must agree with
// the scalar ones row by row.
type Engine interface {
	Name() string
	EquityPrice(s scenario.Scenario, ticker string) (float64, error)
	EquityVolatility(s scenario.Scenario, ticker string) (float64, error)
	CallOptionPrice(strike, t, spot, vol, rate float64) (float64, error)

	EquityPrices(f *scenario.Frame, ticker string) ([]float64, error)
	EquityVolatilities(f *scenario.Frame, ticker string) ([]float64, error)
	CallOptionPrices(strike float64, t, spot, vol, rate []float64) ([]float64, error)
}

// VolatilityKey returns the snapshot key carrying the volatility of ticker
func VolatilityKey(ticker string) string {
	return ticker + scenario.VolatilitySfx
}

// BaseEngine reads prices and volatilities directly from the snapshot
type BaseEngine struct{}

// NewBaseEngine creates the plain engine
func NewBaseEngine() *BaseEngine {
	return &BaseEngine{}
}

func (e *BaseEngine) Name() string { return BaseEngineName }

// EquityPrice returns the snapshot value of ticker
func (e *BaseEngine) EquityPrice(s scenario.Scenario, ticker string) (float64, error) {
	return s.Get(ticker)
}

// EquityVolatility returns the volatility of ticker, DefaultEquityVolatility when absent
func (e *BaseEngine) EquityVolatility(s scenario.Scenario, ticker string) (float64, error) {
	if v, ok := s.Lookup(VolatilityKey(ticker)); ok {
		return v, nil
	}
	return DefaultEquityVolatility, nil
}

// CallOptionPrice prices with Black-Scholes
func (e *BaseEngine) CallOptionPrice(strike, t, spot, vol, rate float64) (float64, error) {
	return BlackScholesCall(strike, t, spot, vol, rate)
}

func (e *BaseEngine) EquityPrices(f *scenario.Frame, ticker string) ([]float64, error) {
	return f.Column(ticker)
}

func (e *BaseEngine) EquityVolatilities(f *scenario.Frame, ticker string) ([]float64, error) {
	return f.ColumnOr(VolatilityKey(ticker), DefaultEquityVolatility), nil
}

func (e *BaseEngine) CallOptionPrices(strike float64, t, spot, vol, rate []float64) ([]float64, error) {
	return BlackScholesCalls(strike, t, spot, vol, rate)
}

const (
	BaseEngineName  = "PricingEngine"
	ProxyEngineName = "PricingEngineWithProxyAndResidual"
)

// New builds an engine by name. seed only affects engines with random residuals.
func New(name string, seed uint64) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "base", strings.ToLower(BaseEngineName):
		return NewBaseEngine(), nil
	case "proxy", strings.ToLower(ProxyEngineName):
		return NewProxyEngine(NewBaseEngine(), seed, DefaultProxyRules()...), nil
	default:
		return nil, errors.InvalidArgument(fmt.Sprintf("unknown pricing engine %q", name))
	}
}

// Names lists the registered engine names
func Names() []string {
	return []string{BaseEngineName, ProxyEngineName}
}
