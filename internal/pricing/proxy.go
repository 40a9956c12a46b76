package pricing

import (
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"

	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

// ProxyRule prices Ticker from another risk factor: Source*Ratio plus a
// Gaussian residual with standard deviation ResidualSigma.
type ProxyRule struct {
	Ticker        string  `json:"ticker" yaml:"ticker" mapstructure:"ticker"`
	Source        string  `json:"source" yaml:"source" mapstructure:"source"`
	Ratio         float64 `json:"ratio" yaml:"ratio" mapstructure:"ratio"`
	ResidualSigma float64 `json:"residual_sigma" yaml:"residual_sigma" mapstructure:"residual_sigma"`
}

// DefaultProxyRules prices Danske Bank off Nordea
func DefaultProxyRules() []ProxyRule {
	return []ProxyRule{{
		Ticker:        scenario.DanskeTicker,
		Source:        scenario.NordeaTicker,
		Ratio:         106.1 / 67.63,
		ResidualSigma: 2.123,
	}}
}

// ProxyEngine overrides equity prices for proxied tickers and delegates everything else.
// The residual for a (scenario, ticker) pair depends only on the engine seed and the
// scenario sequence number, so the order of evaluation does not change prices.
type ProxyEngine struct {
	Engine
	seed  uint64
	rules map[string]ProxyRule
	log   *logger.Logger
}

// NewProxyEngine wraps base. Later rules for the same ticker win.
func NewProxyEngine(base Engine, seed uint64, rules ...ProxyRule) *ProxyEngine {
	m := make(map[string]ProxyRule, len(rules))
	for _, r := range rules {
		m[r.Ticker] = r
	}
	return &ProxyEngine{
		Engine: base,
		seed:   seed,
		rules:  m,
		log:    logger.GetLogger("pricing.proxy"),
	}
}

func (e *ProxyEngine) Name() string { return ProxyEngineName }

// Seed returns the residual seed
func (e *ProxyEngine) Seed() uint64 { return e.seed }

// Rules returns the proxy rules keyed by ticker
func (e *ProxyEngine) Rules() map[string]ProxyRule {
	out := make(map[string]ProxyRule, len(e.rules))
	for k, v := range e.rules {
		out[k] = v
	}
	return out
}

func (e *ProxyEngine) residual(seq int, r ProxyRule) float64 {
	if r.ResidualSigma == 0 {
		return 0
	}
	rng := rand.New(rand.NewPCG(e.seed^uint64(seq)*0x9e3779b97f4a7c15, xxhash.Sum64String(r.Ticker)))
	return rng.NormFloat64() * r.ResidualSigma
}

// EquityPrice applies the proxy rule for ticker, if any
func (e *ProxyEngine) EquityPrice(s scenario.Scenario, ticker string) (float64, error) {
	r, ok := e.rules[ticker]
	if !ok {
		return e.Engine.EquityPrice(s, ticker)
	}
	src, err := e.Engine.EquityPrice(s, r.Source)
	if err != nil {
		return 0, err
	}
	eps := e.residual(s.Seq, r)
	e.log.Debugf("proxy %s from %s: %g*%g%+g", ticker, r.Source, src, r.Ratio, eps)
	return src*r.Ratio + eps, nil
}

func (e *ProxyEngine) EquityPrices(f *scenario.Frame, ticker string) ([]float64, error) {
	r, ok := e.rules[ticker]
	if !ok {
		return e.Engine.EquityPrices(f, ticker)
	}
	src, err := e.Engine.EquityPrices(f, r.Source)
	if err != nil {
		return nil, err
	}
	for i, seq := range f.Seqs() {
		src[i] = src[i]*r.Ratio + e.residual(seq, r)
	}
	return src, nil
}
