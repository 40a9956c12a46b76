package scenario

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

// DefaultSeed is the seed used when none is configured
const DefaultSeed uint64 = 123

// MonteCarlo draws snapshots from a multivariate normal distribution over a subset
// of the risk factors of a mean snapshot. The sequence is infinite and restartable.
type MonteCarlo struct {
	mean map[string]float64
	keys []string
	mu   []float64
	chol [][]float64 // lower triangular factor of the covariance
	seed uint64
	log  *logger.Logger
}

// NewMonteCarlo creates a generator. A nil keys slice selects every key of mean in
// sorted order. covariance must be a symmetric positive definite len(keys) square matrix.
func NewMonteCarlo(mean map[string]float64, covariance [][]float64, keys []string, seed uint64) (*MonteCarlo, error) {
	if keys == nil {
		keys = make([]string, 0, len(mean))
		for k := range mean {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	} else {
		var missing []string
		for _, k := range keys {
			if _, ok := mean[k]; !ok {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return nil, errors.MissingScenarioKeys(missing)
		}
		keys = append([]string(nil), keys...)
	}

	n := len(keys)
	if len(covariance) != n {
		return nil, errors.InvalidArgument(fmt.Sprintf("covariance has %d rows, expected %d", len(covariance), n))
	}

	chol, err := choleskyLower(covariance)
	if err != nil {
		return nil, err
	}

	mu := make([]float64, n)
	for i, k := range keys {
		mu[i] = mean[k]
	}

	cp := make(map[string]float64, len(mean))
	for k, v := range mean {
		cp[k] = v
	}

	return &MonteCarlo{
		mean: cp,
		keys: keys,
		mu:   mu,
		chol: chol,
		seed: seed,
		log:  logger.GetLogger("scenario.montecarlo"),
	}, nil
}

func choleskyLower(covariance [][]float64) ([][]float64, error) {
	n := len(covariance)
	if n == 0 {
		return nil, nil
	}

	for i, row := range covariance {
		if len(row) != n {
			return nil, errors.InvalidArgument(fmt.Sprintf("covariance row %d has %d columns, expected %d", i, len(row), n))
		}
	}

	data := make([]float64, 0, n*n)
	for i, row := range covariance {
		for j, v := range row {
			if math.Abs(v-covariance[j][i]) > 1e-12*math.Max(1, math.Abs(v)) {
				return nil, errors.InvalidArgument(fmt.Sprintf("covariance is not symmetric at (%d,%d)", i, j))
			}
		}
		data = append(data, row...)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(n, data)); !ok {
		return nil, errors.InvalidArgument("covariance is not positive definite")
	}

	var l mat.TriDense
	chol.LTo(&l)

	lower := make([][]float64, n)
	for i := 0; i < n; i++ {
		lower[i] = make([]float64, i+1)
		for j := 0; j <= i; j++ {
			lower[i][j] = l.At(i, j)
		}
	}
	return lower, nil
}

// Keys returns the randomized risk factors
func (g *MonteCarlo) Keys() []string {
	return append([]string(nil), g.keys...)
}

// Seed returns the seed of the pseudo-random stream
func (g *MonteCarlo) Seed() uint64 {
	return g.seed
}

// Scenarios implements Source. Each iterator replays the same stream.
func (g *MonteCarlo) Scenarios() Iterator {
	g.log.Debugf("starting Monte Carlo stream over %v with seed %d", g.keys, g.seed)
	return &monteCarloIterator{
		gen: g,
		rng: rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15)),
		z:   make([]float64, len(g.keys)),
	}
}

type monteCarloIterator struct {
	gen *MonteCarlo
	rng *rand.Rand
	z   []float64
	seq int
}

func (it *monteCarloIterator) Next() (Scenario, bool, error) {
	g := it.gen
	for i := range it.z {
		it.z[i] = it.rng.NormFloat64()
	}

	s := New(it.seq, g.mean)
	for i, k := range g.keys {
		x := g.mu[i]
		for j, lij := range g.chol[i] {
			x += lij * it.z[j]
		}
		s.values[k] = x
	}
	it.seq++
	return s, true, nil
}
