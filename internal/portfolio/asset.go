// Package portfolio models priceable instruments as a tree of assets.
// Pricing never mutates the tree; market lookups go through a pricing.Engine.
package portfolio

import (
	"fmt"
	"strings"

	"github.com/rzzdr/quant-scenario-engine/internal/pricing"
	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// Kind is the persisted asset_type discriminator
type Kind string

const (
	KindEquity              Kind = "Equity"
	KindVanillaCallOption   Kind = "VanillaCallOption"
	KindVanillaCallOptionDK Kind = "VanillaCallOptionDK"
	KindPosition            Kind = "Position"
	KindPortfolio           Kind = "Portfolio"
	KindNullAsset           Kind = "NullAsset"
)

// Asset is a node of a valuation tree.
// PriceFrame and VolatilityFrame must agree with Price and Volatility row by row.
type Asset interface {
	Kind() Kind
	Price(s scenario.Scenario, e pricing.Engine) (float64, error)
	Volatility(s scenario.Scenario, e pricing.Engine) (float64, error)
	PriceFrame(f *scenario.Frame, e pricing.Engine) ([]float64, error)
	VolatilityFrame(f *scenario.Frame, e pricing.Engine) ([]float64, error)
	Children() []Asset
	Clone() Asset
	String() string
}

// Equity is a listed share priced from its ticker's risk factor
type Equity struct {
	Ticker string
}

// NewEquity creates an equity
func NewEquity(ticker string) *Equity {
	return &Equity{Ticker: ticker}
}

func (a *Equity) Kind() Kind { return KindEquity }

func (a *Equity) Price(s scenario.Scenario, e pricing.Engine) (float64, error) {
	return e.EquityPrice(s, a.Ticker)
}

func (a *Equity) Volatility(s scenario.Scenario, e pricing.Engine) (float64, error) {
	return e.EquityVolatility(s, a.Ticker)
}

func (a *Equity) PriceFrame(f *scenario.Frame, e pricing.Engine) ([]float64, error) {
	return e.EquityPrices(f, a.Ticker)
}

func (a *Equity) VolatilityFrame(f *scenario.Frame, e pricing.Engine) ([]float64, error) {
	return e.EquityVolatilities(f, a.Ticker)
}

func (a *Equity) Children() []Asset { return nil }

func (a *Equity) Clone() Asset { return &Equity{Ticker: a.Ticker} }

func (a *Equity) String() string { return a.Ticker }

// Position holds amount units of the equity
func (a *Equity) Position(amount float64) *Position {
	return NewPosition(amount, a.Clone())
}

// CallOption writes a call on the equity, fixed on EONIA
func (a *Equity) CallOption(strike, maturity float64) *VanillaCallOption {
	return NewVanillaCallOption(strike, maturity, a.Clone())
}

// VanillaCallOption is a European call on a single underlying.
// RateKey names the risk factor holding the interest rate.
type VanillaCallOption struct {
	Strike     float64
	Maturity   float64
	RateKey    string
	Underlying Asset
	kind       Kind
}

// NewVanillaCallOption creates a call fixed on EONIA
func NewVanillaCallOption(strike, maturity float64, underlying Asset) *VanillaCallOption {
	return &VanillaCallOption{
		Strike:     strike,
		Maturity:   maturity,
		RateKey:    scenario.EoniaRate,
		Underlying: underlying,
		kind:       KindVanillaCallOption,
	}
}

// NewVanillaCallOptionDK creates a call fixed on the Danish one week LIBOR
func NewVanillaCallOptionDK(strike, maturity float64, underlying Asset) *VanillaCallOption {
	return &VanillaCallOption{
		Strike:     strike,
		Maturity:   maturity,
		RateKey:    scenario.DKKLibor1W,
		Underlying: underlying,
		kind:       KindVanillaCallOptionDK,
	}
}

func (a *VanillaCallOption) Kind() Kind {
	if a.kind == "" {
		return KindVanillaCallOption
	}
	return a.kind
}

func (a *VanillaCallOption) rateKey() string {
	if a.RateKey != "" {
		return a.RateKey
	}
	if a.Kind() == KindVanillaCallOptionDK {
		return scenario.DKKLibor1W
	}
	return scenario.EoniaRate
}

func (a *VanillaCallOption) Price(s scenario.Scenario, e pricing.Engine) (float64, error) {
	spot, err := a.Underlying.Price(s, e)
	if err != nil {
		return 0, err
	}
	vol, err := a.Underlying.Volatility(s, e)
	if err != nil {
		return 0, err
	}
	day, err := s.Day()
	if err != nil {
		return 0, err
	}
	rate, err := s.Get(a.rateKey())
	if err != nil {
		return 0, err
	}
	return e.CallOptionPrice(a.Strike, a.Maturity-day, spot, vol, rate)
}

// Volatility is not modelled for options
func (a *VanillaCallOption) Volatility(scenario.Scenario, pricing.Engine) (float64, error) {
	return 0, errors.UnsupportedOperation("option volatility is not modelled")
}

func (a *VanillaCallOption) PriceFrame(f *scenario.Frame, e pricing.Engine) ([]float64, error) {
	spot, err := a.Underlying.PriceFrame(f, e)
	if err != nil {
		return nil, err
	}
	vol, err := a.Underlying.VolatilityFrame(f, e)
	if err != nil {
		return nil, err
	}
	days, err := f.Column(scenario.DayKey)
	if err != nil {
		return nil, err
	}
	rate, err := f.Column(a.rateKey())
	if err != nil {
		return nil, err
	}
	t := make([]float64, len(days))
	for i, d := range days {
		t[i] = a.Maturity - d
	}
	return e.CallOptionPrices(a.Strike, t, spot, vol, rate)
}

func (a *VanillaCallOption) VolatilityFrame(*scenario.Frame, pricing.Engine) ([]float64, error) {
	return nil, errors.UnsupportedOperation("option volatility is not modelled")
}

func (a *VanillaCallOption) Children() []Asset { return []Asset{a.Underlying} }

func (a *VanillaCallOption) Clone() Asset {
	return &VanillaCallOption{
		Strike:     a.Strike,
		Maturity:   a.Maturity,
		RateKey:    a.RateKey,
		Underlying: a.Underlying.Clone(),
		kind:       a.kind,
	}
}

func (a *VanillaCallOption) String() string {
	return fmt.Sprintf("%s(%s, K=%g, T=%g)", a.Kind(), a.Underlying, a.Strike, a.Maturity)
}

// Position scales an asset by an amount
type Position struct {
	Amount float64
	Asset  Asset
}

// NewPosition creates a position
func NewPosition(amount float64, asset Asset) *Position {
	return &Position{Amount: amount, Asset: asset}
}

func (a *Position) Kind() Kind { return KindPosition }

func (a *Position) Price(s scenario.Scenario, e pricing.Engine) (float64, error) {
	p, err := a.Asset.Price(s, e)
	if err != nil {
		return 0, err
	}
	return a.Amount * p, nil
}

func (a *Position) Volatility(s scenario.Scenario, e pricing.Engine) (float64, error) {
	v, err := a.Asset.Volatility(s, e)
	if err != nil {
		return 0, err
	}
	return a.Amount * v, nil
}

func (a *Position) PriceFrame(f *scenario.Frame, e pricing.Engine) ([]float64, error) {
	col, err := a.Asset.PriceFrame(f, e)
	if err != nil {
		return nil, err
	}
	return scaleColumn(a.Amount, col), nil
}

func (a *Position) VolatilityFrame(f *scenario.Frame, e pricing.Engine) ([]float64, error) {
	col, err := a.Asset.VolatilityFrame(f, e)
	if err != nil {
		return nil, err
	}
	return scaleColumn(a.Amount, col), nil
}

func scaleColumn(factor float64, col []float64) []float64 {
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = factor * v
	}
	return out
}

func (a *Position) Children() []Asset { return []Asset{a.Asset} }

func (a *Position) Clone() Asset { return &Position{Amount: a.Amount, Asset: a.Asset.Clone()} }

func (a *Position) String() string { return fmt.Sprintf("%g %s", a.Amount, a.Asset) }

// Portfolio is an ordered collection of assets priced as their sum
type Portfolio struct {
	Assets []Asset
}

// NewPortfolio creates a portfolio over assets
func NewPortfolio(assets ...Asset) *Portfolio {
	return &Portfolio{Assets: append([]Asset(nil), assets...)}
}

// WithAsset appends an asset and returns the portfolio for chaining
func (a *Portfolio) WithAsset(asset Asset) *Portfolio {
	a.Assets = append(a.Assets, asset)
	return a
}

// EquityPosition appends amount units of ticker
func (a *Portfolio) EquityPosition(amount float64, ticker string) *Portfolio {
	return a.WithAsset(NewEquity(ticker).Position(amount))
}

func (a *Portfolio) Kind() Kind { return KindPortfolio }

func (a *Portfolio) Price(s scenario.Scenario, e pricing.Engine) (float64, error) {
	var total float64
	for _, child := range a.Assets {
		p, err := child.Price(s, e)
		if err != nil {
			return 0, err
		}
		total += p
	}
	return total, nil
}

// Volatility always fails: correlations between holdings are not modelled
func (a *Portfolio) Volatility(scenario.Scenario, pricing.Engine) (float64, error) {
	return 0, errors.UnsupportedOperation("portfolio volatility requires correlations, which are not modelled")
}

func (a *Portfolio) PriceFrame(f *scenario.Frame, e pricing.Engine) ([]float64, error) {
	total := make([]float64, f.Rows())
	for _, child := range a.Assets {
		col, err := child.PriceFrame(f, e)
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			total[i] += v
		}
	}
	return total, nil
}

func (a *Portfolio) VolatilityFrame(*scenario.Frame, pricing.Engine) ([]float64, error) {
	return nil, errors.UnsupportedOperation("portfolio volatility requires correlations, which are not modelled")
}

func (a *Portfolio) Children() []Asset { return append([]Asset(nil), a.Assets...) }

func (a *Portfolio) Clone() Asset {
	assets := make([]Asset, len(a.Assets))
	for i, child := range a.Assets {
		assets[i] = child.Clone()
	}
	return &Portfolio{Assets: assets}
}

func (a *Portfolio) String() string {
	parts := make([]string, len(a.Assets))
	for i, child := range a.Assets {
		parts[i] = child.String()
	}
	return "Portfolio[" + strings.Join(parts, ", ") + "]"
}

// NullAsset is worth nothing in every scenario
type NullAsset struct{}

func (NullAsset) Kind() Kind { return KindNullAsset }

func (NullAsset) Price(scenario.Scenario, pricing.Engine) (float64, error) { return 0, nil }

func (NullAsset) Volatility(scenario.Scenario, pricing.Engine) (float64, error) { return 0, nil }

func (NullAsset) PriceFrame(f *scenario.Frame, _ pricing.Engine) ([]float64, error) {
	return make([]float64, f.Rows()), nil
}

func (NullAsset) VolatilityFrame(f *scenario.Frame, _ pricing.Engine) ([]float64, error) {
	return make([]float64, f.Rows()), nil
}

func (NullAsset) Children() []Asset { return nil }

func (NullAsset) Clone() Asset { return NullAsset{} }

func (NullAsset) String() string { return string(KindNullAsset) }

// Descendants lists every node below a in depth-first pre-order
func Descendants(a Asset) []Asset {
	var out []Asset
	for _, child := range a.Children() {
		out = append(out, child)
		out = append(out, Descendants(child)...)
	}
	return out
}

// Walk calls fn on a and then on its descendants in pre-order, stopping at the first error
func Walk(a Asset, fn func(Asset) error) error {
	if err := fn(a); err != nil {
		return err
	}
	for _, child := range a.Children() {
		if err := Walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Default returns the reference portfolio: Nordea and Danske Bank shares plus a call on Nordea
func Default() *Portfolio {
	return NewPortfolio().
		EquityPosition(100.0, scenario.NordeaTicker).
		EquityPosition(10.0, scenario.DanskeTicker).
		WithAsset(NewEquity(scenario.NordeaTicker).CallOption(70.0, 10.0))
}
