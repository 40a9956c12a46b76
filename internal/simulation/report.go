package simulation

import (
	"context"
	"time"
)

// DefaultConfidence is the confidence level of the tail risk in reports
const DefaultConfidence = 0.99

// Report is the presentation form of an evaluated simulation
type Report struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Strategy  string    `json:"strategy"`
	Engine    string    `json:"engine"`
	Shock     string    `json:"shock"`
	Summary   Summary   `json:"summary"`
	Risk      TailRisk  `json:"risk"`
	CreatedAt time.Time `json:"created_at"`
}

// Report evaluates the simulation and builds its report at DefaultConfidence
func (s *Simulation) Report(ctx context.Context) (*Report, error) {
	return s.ReportAt(ctx, DefaultConfidence)
}

// ReportAt is Report with the tail risk measured at confidence
func (s *Simulation) ReportAt(ctx context.Context, confidence float64) (*Report, error) {
	r, err := s.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	sum, err := r.Summary()
	if err != nil {
		return nil, err
	}
	risk, err := r.TailRisk(confidence)
	if err != nil {
		return nil, err
	}
	return &Report{
		Name:      s.name,
		Strategy:  s.strategy.String(),
		Engine:    s.engine.Name(),
		Shock:     s.shock.String(),
		Summary:   sum,
		Risk:      risk,
		CreatedAt: time.Now().UTC(),
	}, nil
}
