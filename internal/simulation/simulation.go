// Package simulation prices a portfolio over a stream of shocked scenarios.
package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rzzdr/quant-scenario-engine/internal/portfolio"
	"github.com/rzzdr/quant-scenario-engine/internal/pricing"
	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/internal/shock"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

const (
	DefaultBatchSize = 1000
	DefaultName      = "simulation"
)

// State is the evaluation state of a simulation
type State int

const (
	Unevaluated State = iota
	Evaluated
)

func (s State) String() string {
	if s == Evaluated {
		return "evaluated"
	}
	return "unevaluated"
}

// Observer receives evaluation metrics. metrics.Recorder implements it.
type Observer interface {
	RecordSimulation(strategy string, scenarios int, latency time.Duration, err error)
	RecordMeanPrice(name string, mean float64)
}

// Option configures a simulation
type Option func(*Simulation)

// WithShock sets the shock applied to every scenario
func WithShock(s shock.Shock) Option {
	return func(sim *Simulation) { sim.shock = s }
}

// WithScenarioCount bounds the number of scenarios. 0 means every row of a finite source.
func WithScenarioCount(n int) Option {
	return func(sim *Simulation) { sim.count = n }
}

// WithStrategy sets the evaluation strategy
func WithStrategy(s Strategy) Option {
	return func(sim *Simulation) { sim.strategy = s }
}

// WithBatchSize sets the frame size of the batched strategy
func WithBatchSize(n int) Option {
	return func(sim *Simulation) { sim.batchSize = n }
}

// WithWorkers sets how many batches are priced concurrently
func WithWorkers(n int) Option {
	return func(sim *Simulation) { sim.workers = n }
}

// WithRecorder attaches a metrics observer
func WithRecorder(o Observer) Option {
	return func(sim *Simulation) { sim.observer = o }
}

// WithName labels the simulation in logs, metrics and reports
func WithName(name string) Option {
	return func(sim *Simulation) { sim.name = name }
}

// Simulation binds a portfolio, a scenario source, a pricing engine and a shock.
// It is evaluated at most once; the With methods return fresh unevaluated copies.
type Simulation struct {
	name      string
	portfolio portfolio.Asset
	source    scenario.Source
	engine    pricing.Engine
	shock     shock.Shock
	count     int
	strategy  Strategy
	batchSize int
	workers   int
	observer  Observer
	log       *logger.Logger

	mu     sync.Mutex
	state  State
	result *Result
	err    error
}

// New creates an unevaluated simulation
func New(p portfolio.Asset, src scenario.Source, e pricing.Engine, opts ...Option) (*Simulation, error) {
	sim := &Simulation{
		name:      DefaultName,
		portfolio: p,
		source:    src,
		engine:    e,
		shock:     shock.Identity(),
		strategy:  PerScenario,
		batchSize: DefaultBatchSize,
		workers:   1,
		log:       logger.GetLogger("simulation"),
	}
	for _, opt := range opts {
		opt(sim)
	}
	if err := sim.validate(); err != nil {
		return nil, err
	}
	return sim, nil
}

func (s *Simulation) validate() error {
	switch {
	case s.portfolio == nil:
		return errors.InvalidArgument("simulation needs a portfolio")
	case s.source == nil:
		return errors.InvalidArgument("simulation needs a scenario source")
	case s.engine == nil:
		return errors.InvalidArgument("simulation needs a pricing engine")
	case s.count < 0:
		return errors.InvalidArgument("scenario count must not be negative")
	case s.batchSize <= 0:
		return errors.InvalidArgument("batch size must be positive")
	case s.workers <= 0:
		return errors.InvalidArgument("worker count must be positive")
	}
	if s.shock == nil {
		s.shock = shock.Identity()
	}
	strategy, err := ParseStrategy(string(s.strategy))
	if err != nil {
		return err
	}
	s.strategy = strategy
	return nil
}

// Clone returns an unevaluated copy with the same configuration
func (s *Simulation) Clone() *Simulation {
	return &Simulation{
		name:      s.name,
		portfolio: s.portfolio,
		source:    s.source,
		engine:    s.engine,
		shock:     s.shock,
		count:     s.count,
		strategy:  s.strategy,
		batchSize: s.batchSize,
		workers:   s.workers,
		observer:  s.observer,
		log:       s.log,
	}
}

// WithPortfolio returns an unevaluated copy pricing p
func (s *Simulation) WithPortfolio(p portfolio.Asset) *Simulation {
	c := s.Clone()
	c.portfolio = p
	return c
}

// WithEngine returns an unevaluated copy using e
func (s *Simulation) WithEngine(e pricing.Engine) *Simulation {
	c := s.Clone()
	c.engine = e
	return c
}

// WithSource returns an unevaluated copy drawing from src
func (s *Simulation) WithSource(src scenario.Source) *Simulation {
	c := s.Clone()
	c.source = src
	return c
}

// WithShock returns an unevaluated copy applying sh
func (s *Simulation) WithShock(sh shock.Shock) *Simulation {
	c := s.Clone()
	if sh == nil {
		sh = shock.Identity()
	}
	c.shock = sh
	return c
}

// WithStrategy returns an unevaluated copy using strategy
func (s *Simulation) WithStrategy(strategy Strategy) *Simulation {
	c := s.Clone()
	c.strategy = strategy
	return c
}

// WithScenarioCount returns an unevaluated copy bounded to n scenarios
func (s *Simulation) WithScenarioCount(n int) *Simulation {
	c := s.Clone()
	c.count = n
	return c
}

// WithName returns an unevaluated copy labelled name
func (s *Simulation) WithName(name string) *Simulation {
	c := s.Clone()
	c.name = name
	return c
}

func (s *Simulation) Name() string { return s.name }
func (s *Simulation) Portfolio() portfolio.Asset { return s.portfolio }
func (s *Simulation) Engine() pricing.Engine { return s.engine }
func (s *Simulation) Shock() shock.Shock { return s.shock }
func (s *Simulation) Strategy() Strategy { return s.strategy }

// State reports whether the simulation has been evaluated
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Evaluate prices every scenario. The first completed evaluation is cached, including
// its error; cancellation of ctx leaves the simulation unevaluated.
func (s *Simulation) Evaluate(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Evaluated {
		return s.result, s.err
	}

	// The With* copies are not validated when they are built
	if err := s.validate(); err != nil {
		return nil, err
	}
	n, err := scenario.Bound(s.source, s.count)
	if err != nil {
		return nil, err
	}

	strategy := s.strategy
	log := s.log.With("name", s.name, "strategy", strategy, "scenarios", n)
	log.Info("Starting evaluation")

	start := time.Now()
	prices, err := s.run(ctx, strategy, n)
	latency := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		log.Warnf("Evaluation cancelled after %s: %v", latency, err)
		return nil, ctxErr
	}

	if s.observer != nil {
		s.observer.RecordSimulation(strategy.String(), len(prices), latency, err)
	}

	if err != nil {
		log.Errorf("Evaluation failed after %s: %v", latency, err)
		s.state, s.err = Evaluated, err
		return nil, err
	}

	s.state, s.result = Evaluated, newResult(prices)
	if sum, err := s.result.Summary(); err == nil {
		if s.observer != nil {
			s.observer.RecordMeanPrice(s.name, sum.Mean)
		}
		log.Infof("Evaluation finished in %s: mean=%g std=%g", latency, sum.Mean, sum.StdDev)
	}
	return s.result, nil
}

// Prices evaluates the simulation and returns the price vector
func (s *Simulation) Prices(ctx context.Context) ([]float64, error) {
	r, err := s.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return r.Prices(), nil
}

// Summary evaluates the simulation and summarizes the price distribution
func (s *Simulation) Summary(ctx context.Context) (Summary, error) {
	r, err := s.Evaluate(ctx)
	if err != nil {
		return Summary{}, err
	}
	return r.Summary()
}

func (s *Simulation) run(ctx context.Context, strategy Strategy, n int) ([]float64, error) {
	it := s.source.Scenarios()
	switch strategy {
	case Vectorized:
		if n == 0 {
			return []float64{}, nil
		}
		rows, err := scenario.Take(it, n)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.priceFrame(scenario.FromScenarios(rows))
	case Batched:
		return s.runBatched(ctx, it, n)
	case PerScenario:
		return s.runPerScenario(ctx, it, n)
	}
	return nil, errors.Internal(fmt.Sprintf("strategy %q has no runner", strategy))
}

func (s *Simulation) runPerScenario(ctx context.Context, it scenario.Iterator, n int) ([]float64, error) {
	prices := make([]float64, 0, n)
	for len(prices) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sc, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		shocked, err := s.shock.Apply(sc)
		if err != nil {
			return nil, errors.Wrapf(err, "scenario %d", sc.Seq)
		}
		p, err := s.portfolio.Price(shocked, s.engine)
		if err != nil {
			return nil, errors.Wrapf(err, "scenario %d", sc.Seq)
		}
		s.log.Debugf("scenario %d priced at %g", sc.Seq, p)
		prices = append(prices, p)
	}
	return prices, nil
}

func (s *Simulation) priceFrame(f *scenario.Frame) ([]float64, error) {
	shocked, err := s.shock.ApplyFrame(f)
	if err != nil {
		return nil, err
	}
	return s.portfolio.PriceFrame(shocked, s.engine)
}

// runBatched draws batches sequentially from it and prices them on up to s.workers
// goroutines. Batch results are reassembled in scenario order.
func (s *Simulation) runBatched(ctx context.Context, it scenario.Iterator, n int) ([]float64, error) {
	chunks := make([][]float64, (n+s.batchSize-1)/s.batchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	drawn := 0
	for i := range chunks {
		if err := gctx.Err(); err != nil {
			break
		}
		rows, err := scenario.Take(it, min(s.batchSize, n-drawn))
		if err != nil {
			g.Go(func() error { return err })
			break
		}
		if len(rows) == 0 {
			break
		}
		drawn += len(rows)

		frame := scenario.FromScenarios(rows)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prices, err := s.priceFrame(frame)
			if err != nil {
				return errors.Wrapf(err, "batch %d", i)
			}
			s.log.Debugf("batch %d priced %d scenarios", i, len(prices))
			chunks[i] = prices
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prices := make([]float64, 0, drawn)
	for _, c := range chunks {
		prices = append(prices, c...)
	}
	return prices, nil
}
