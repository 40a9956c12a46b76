package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rzzdr/quant-scenario-engine/internal/simulation"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

// Run is an evaluated simulation kept for later retrieval
type Run struct {
	Report *simulation.Report
	Prices []float64
}

// RunStore persists evaluated simulations by run id
type RunStore interface {
	SaveRun(run *Run) (string, error)
	GetRun(id string) (*Run, error)
	ListRuns() ([]*simulation.Report, error)
}

// InMemoryRunStore implements an in-memory run storage
type InMemoryRunStore struct {
	runs map[string]*Run
	mu   sync.RWMutex
	log  *logger.Logger
}

// NewInMemoryRunStore creates a new in-memory run store
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs: make(map[string]*Run),
		log:  logger.GetLogger("store.runs"),
	}
}

// SaveRun stores a run and returns its id. A report without an id gets a fresh UUID.
func (s *InMemoryRunStore) SaveRun(run *Run) (string, error) {
	if run == nil || run.Report == nil {
		return "", errors.InvalidArgument("cannot save a run without a report")
	}

	if run.Report.ID == "" {
		run.Report.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.Report.ID] = run
	s.log.Debugf("Saved run %s (%d prices)", run.Report.ID, len(run.Prices))
	return run.Report.ID, nil
}

// GetRun retrieves a run by id
func (s *InMemoryRunStore) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, errors.NotFound("run not found: " + id)
	}

	return run, nil
}

// ListRuns returns the reports of every stored run, oldest first
func (s *InMemoryRunStore) ListRuns() ([]*simulation.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]*simulation.Report, 0, len(s.runs))
	for _, r := range s.runs {
		reports = append(reports, r.Report)
	}
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].CreatedAt.Equal(reports[j].CreatedAt) {
			return reports[i].ID < reports[j].ID
		}
		return reports[i].CreatedAt.Before(reports[j].CreatedAt)
	})

	return reports, nil
}
