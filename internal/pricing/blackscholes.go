package pricing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// BlackScholesCall prices a European call option without dividends.
// strike, t (years), spot and vol must be strictly positive.
func BlackScholesCall(strike, t, spot, vol, rate float64) (float64, error) {
	if err := checkOptionInputs(strike, t, spot, vol); err != nil {
		return 0, err
	}
	return blackScholesCall(strike, t, spot, vol, rate), nil
}

func blackScholesCall(strike, t, spot, vol, rate float64) float64 {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (rate+0.5*vol*vol)*t) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT

	return spot*distuv.UnitNormal.CDF(d1) - strike*math.Exp(-rate*t)*distuv.UnitNormal.CDF(d2)
}

func checkOptionInputs(strike, t, spot, vol float64) error {
	switch {
	case vol <= 0 || math.IsNaN(vol):
		return errors.InvalidOptionParameters(fmt.Sprintf("volatility must be positive, got %g", vol))
	case t <= 0 || math.IsNaN(t):
		return errors.InvalidOptionParameters(fmt.Sprintf("time to maturity must be positive, got %g", t))
	case strike <= 0 || math.IsNaN(strike):
		return errors.InvalidOptionParameters(fmt.Sprintf("strike must be positive, got %g", strike))
	case spot <= 0 || math.IsNaN(spot):
		return errors.InvalidOptionParameters(fmt.Sprintf("spot must be positive, got %g", spot))
	}
	return nil
}

// BlackScholesCalls prices a strike against columns of inputs. All columns must have the same length.
// The first invalid row fails the whole batch.
func BlackScholesCalls(strike float64, t, spot, vol, rate []float64) ([]float64, error) {
	n := len(t)
	if len(spot) != n || len(vol) != n || len(rate) != n {
		return nil, errors.InvalidArgument(fmt.Sprintf("option input columns differ in length: %d, %d, %d, %d", n, len(spot), len(vol), len(rate)))
	}
	out := make([]float64, n)
	for i := range out {
		if err := checkOptionInputs(strike, t[i], spot[i], vol[i]); err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		out[i] = blackScholesCall(strike, t[i], spot[i], vol[i], rate[i])
	}
	return out, nil
}
