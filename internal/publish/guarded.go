package publish

import (
	"context"

	"github.com/rzzdr/quant-scenario-engine/internal/simulation"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/circuit"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// Guarded fails fast while the wrapped publisher keeps failing, so an
// unreachable broker does not add its write timeout to every run.
type Guarded struct {
	next    Publisher
	breaker *circuit.Breaker
}

// NewGuarded wraps next with a circuit breaker
func NewGuarded(next Publisher, cfg circuit.Config) *Guarded {
	return &Guarded{
		next:    next,
		breaker: circuit.NewBreaker("publish", cfg),
	}
}

func (g *Guarded) PublishReport(ctx context.Context, report *simulation.Report) error {
	if report == nil || report.ID == "" {
		return errors.InvalidArgument("cannot publish a report without an id")
	}
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.next.PublishReport(ctx, report)
	})
	if errors.Is(err, circuit.ErrOpen) || errors.Is(err, circuit.ErrTooManyRequests) {
		return errors.Wrapf(err, "report %s dropped", report.ID)
	}
	return err
}

// State reports the breaker state
func (g *Guarded) State() circuit.State {
	return g.breaker.State()
}

func (g *Guarded) Close() error {
	return g.next.Close()
}
