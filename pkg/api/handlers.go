package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzzdr/quant-scenario-engine/internal/pricing"
	"github.com/rzzdr/quant-scenario-engine/internal/publish"
	"github.com/rzzdr/quant-scenario-engine/internal/scenario"
	"github.com/rzzdr/quant-scenario-engine/internal/shock"
	"github.com/rzzdr/quant-scenario-engine/internal/simulation"
	"github.com/rzzdr/quant-scenario-engine/internal/store"
	"github.com/rzzdr/quant-scenario-engine/pkg/metrics"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

// DefaultScenarioCount is used when a Monte Carlo request leaves count unset
const DefaultScenarioCount = 1000

// Admitter admits a simulation weighing n scenarios
type Admitter interface {
	AllowN(n int) bool
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	runs         store.RunStore
	publisher    publish.Publisher
	recorder     *metrics.Recorder
	admitter     Admitter
	maxScenarios int
	chunkSize    int
	log          *logger.Logger
}

// CreateHandlers creates new API handlers. A nil publisher disables publishing,
// a nil admitter admits every simulation.
func CreateHandlers(runs store.RunStore, publisher publish.Publisher, recorder *metrics.Recorder, admitter Admitter, maxScenarios, chunkSize int) *Handlers {
	if publisher == nil {
		publisher = publish.Nop{}
	}
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &Handlers{
		runs:         runs,
		publisher:    publisher,
		recorder:     recorder,
		admitter:     admitter,
		maxScenarios: maxScenarios,
		chunkSize:    chunkSize,
		log:          logger.GetLogger("api.handlers"),
	}
}

// HealthCheckHandler handles health check requests
func (h *Handlers) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"engines":   pricing.Names(),
	})
}

// PricePortfolioHandler prices a portfolio under one snapshot
func (h *Handlers) PricePortfolioHandler(c *gin.Context) {
	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	asset, err := decodePortfolio(req.Portfolio)
	if err != nil {
		h.fail(c, err)
		return
	}
	engine, err := pricing.New(req.Engine, req.EngineSeed)
	if err != nil {
		h.fail(c, err)
		return
	}
	sh, err := shock.BuildAll(req.Shocks)
	if err != nil {
		h.fail(c, err)
		return
	}

	values := req.Scenario
	if values == nil {
		values = scenario.DefaultMarket()
	}
	s, err := sh.Apply(scenario.New(0, values))
	if err != nil {
		h.fail(c, err)
		return
	}

	price, err := asset.Price(s, engine)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"price":  price,
		"engine": engine.Name(),
		"shock":  sh.String(),
	})
}

// CreateSimulationHandler runs a simulation, stores it and publishes its report
func (h *Handlers) CreateSimulationHandler(c *gin.Context) {
	var req SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	sim, weight, err := h.buildSimulation(req)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.admitter != nil && !h.admitter.AllowN(weight) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "scenario budget exhausted, retry later"})
		return
	}

	ctx := c.Request.Context()
	report, err := sim.Report(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	prices, err := sim.Prices(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	id, err := h.runs.SaveRun(&store.Run{Report: report, Prices: prices})
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordVaR(report.Name, report.Risk.Confidence, report.Risk.VaR)
		h.recorder.RecordES(report.Name, report.Risk.Confidence, report.Risk.ES)
	}

	// Publishing is best effort; the run is already stored
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := h.publisher.PublishReport(pubCtx, report); err != nil {
		h.log.Warnf("Failed to publish report %s: %v", id, err)
	}

	h.log.Infof("Simulation %s (%s) priced %d scenarios, mean %.4f", id, report.Name, report.Summary.Count, report.Summary.Mean)
	c.JSON(http.StatusCreated, report)
}

// buildSimulation returns the simulation and the number of scenarios it will price
func (h *Handlers) buildSimulation(req SimulationRequest) (*simulation.Simulation, int, error) {
	asset, err := decodePortfolio(req.Portfolio)
	if err != nil {
		return nil, 0, err
	}
	engine, err := pricing.New(req.Engine, req.EngineSeed)
	if err != nil {
		return nil, 0, err
	}
	src, err := req.Scenarios.source()
	if err != nil {
		return nil, 0, err
	}
	sh, err := shock.BuildAll(req.Shocks)
	if err != nil {
		return nil, 0, err
	}

	strategy := simulation.PerScenario
	if req.Strategy != "" {
		if strategy, err = simulation.ParseStrategy(req.Strategy); err != nil {
			return nil, 0, err
		}
	}

	count := req.Scenarios.Count
	if _, finite := src.(scenario.Finite); !finite && count == 0 {
		count = DefaultScenarioCount
	}
	if err := checkCount(count, h.maxScenarios); err != nil {
		return nil, 0, err
	}
	weight, err := scenario.Bound(src, count)
	if err != nil {
		return nil, 0, err
	}
	if h.maxScenarios > 0 && weight > h.maxScenarios {
		return nil, 0, errors.InvalidArgument("too many scenario rows")
	}

	opts := []simulation.Option{
		simulation.WithShock(sh),
		simulation.WithScenarioCount(count),
		simulation.WithStrategy(strategy),
	}
	if req.Name != "" {
		opts = append(opts, simulation.WithName(req.Name))
	}
	if req.BatchSize > 0 {
		opts = append(opts, simulation.WithBatchSize(req.BatchSize))
	}
	if req.Workers > 0 {
		opts = append(opts, simulation.WithWorkers(req.Workers))
	}
	if h.recorder != nil {
		opts = append(opts, simulation.WithRecorder(h.recorder))
	}
	sim, err := simulation.New(asset, src, engine, opts...)
	if err != nil {
		return nil, 0, err
	}
	return sim, weight, nil
}

// GetSimulationHandler returns the report of a stored run
func (h *Handlers) GetSimulationHandler(c *gin.Context) {
	run, err := h.runs.GetRun(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run.Report)
}

// GetSimulationPricesHandler returns the full price vector of a stored run
func (h *Handlers) GetSimulationPricesHandler(c *gin.Context) {
	run, err := h.runs.GetRun(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     run.Report.ID,
		"prices": run.Prices,
	})
}

// ListSimulationsHandler returns the reports of every stored run
func (h *Handlers) ListSimulationsHandler(c *gin.Context) {
	reports, err := h.runs.ListRuns()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"simulations": reports,
		"count":       len(reports),
	})
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	} else {
		h.log.Debugf("%s %s rejected: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"type":  errors.TypeOf(err).String(),
	})
}

func statusOf(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeInvalidArgument,
		errors.ErrorTypeMissingRiskFactor,
		errors.ErrorTypeMissingScenarioKeys,
		errors.ErrorTypeUnsupportedOperation,
		errors.ErrorTypeInvalidOptionParameters,
		errors.ErrorTypeSerializationMismatch:
		return http.StatusBadRequest
	case errors.ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}
