package simulation

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// Summary describes a price distribution. StdDev is the population standard deviation.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// TailRisk holds historical Value at Risk and Expected Shortfall of the price
// distribution measured against its mean. Both are reported as positive losses.
type TailRisk struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	ES         float64 `json:"es"`
}

// Result is the immutable outcome of an evaluation
type Result struct {
	prices []float64

	once    sync.Once
	summary Summary
	err     error
}

func newResult(prices []float64) *Result {
	return &Result{prices: prices}
}

// Prices returns a copy of the price vector in scenario order
func (r *Result) Prices() []float64 {
	return append([]float64(nil), r.prices...)
}

// Len returns the number of priced scenarios
func (r *Result) Len() int {
	return len(r.prices)
}

// Summary returns the distribution statistics, computed on first use
func (r *Result) Summary() (Summary, error) {
	r.once.Do(func() {
		if len(r.prices) == 0 {
			r.err = errors.InvalidArgument("cannot summarize an empty price vector")
			return
		}
		mean, variance := stat.PopMeanVariance(r.prices, nil)
		r.summary = Summary{
			Count:  len(r.prices),
			Mean:   mean,
			Min:    floats.Min(r.prices),
			Max:    floats.Max(r.prices),
			StdDev: math.Sqrt(variance),
		}
	})
	return r.summary, r.err
}

// TailRisk computes VaR and ES at the given confidence level, e.g. 0.99
func (r *Result) TailRisk(confidence float64) (TailRisk, error) {
	if confidence <= 0 || confidence >= 1 {
		return TailRisk{}, errors.InvalidArgument("confidence level must be in (0, 1)")
	}
	if len(r.prices) == 0 {
		return TailRisk{}, errors.InvalidArgument("cannot compute tail risk of an empty price vector")
	}

	mean := stat.Mean(r.prices, nil)
	pnl := make([]float64, len(r.prices))
	for i, p := range r.prices {
		pnl[i] = p - mean
	}
	sort.Float64s(pnl)

	q := stat.Quantile(1-confidence, stat.Empirical, pnl, nil)
	tail := pnl[:sort.Search(len(pnl), func(i int) bool { return pnl[i] > q })]

	return TailRisk{
		Confidence: confidence,
		VaR:        math.Max(0, -q),
		ES:         math.Max(0, -stat.Mean(tail, nil)),
	}, nil
}
