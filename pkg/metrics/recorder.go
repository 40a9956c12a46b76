package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder handles metrics recording for simulations and the API
type Recorder struct {
	// API metrics
	apiRequestCounter   *prometheus.CounterVec
	apiLatencyHistogram *prometheus.HistogramVec

	// Simulation metrics
	simulationRuns      *prometheus.CounterVec
	simulationScenarios *prometheus.CounterVec
	simulationDuration  *prometheus.HistogramVec
	meanPriceGauge      *prometheus.GaugeVec

	// Risk metrics
	varGauge *prometheus.GaugeVec
	esGauge  *prometheus.GaugeVec
}

// NewRecorder creates a recorder whose metrics are registered with reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		// API metrics
		apiRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qf_api_requests_total",
				Help: "The total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiLatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qf_api_latency_seconds",
				Help:    "API request latency distribution",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // From 1ms to ~16s
			},
			[]string{"method", "path"},
		),

		// Simulation metrics
		simulationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qf_simulation_runs_total",
				Help: "The total number of simulation evaluations",
			},
			[]string{"strategy", "status"},
		),
		simulationScenarios: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qf_simulation_scenarios_total",
				Help: "The total number of priced scenarios",
			},
			[]string{"strategy"},
		),
		simulationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qf_simulation_duration_seconds",
				Help:    "Simulation evaluation latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // From 1ms to ~30s
			},
			[]string{"strategy"},
		),
		meanPriceGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qf_simulation_mean_price",
				Help: "Mean portfolio price of the last evaluation",
			},
			[]string{"name"},
		),

		// Risk metrics
		varGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qf_var_value",
				Help: "Value at Risk (VaR) of the simulated price distribution",
			},
			[]string{"name", "confidence_level"},
		),
		esGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qf_es_value",
				Help: "Expected Shortfall (ES) of the simulated price distribution",
			},
			[]string{"name", "confidence_level"},
		),
	}
}

// RecordAPIRequest records metrics for an API request
func (r *Recorder) RecordAPIRequest(method, path string, status int, latency time.Duration) {
	r.apiRequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.apiLatencyHistogram.WithLabelValues(method, path).Observe(latency.Seconds())
}

// RecordSimulation records a finished evaluation. err is the evaluation outcome.
func (r *Recorder) RecordSimulation(strategy string, scenarios int, latency time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.simulationRuns.WithLabelValues(strategy, status).Inc()
	r.simulationScenarios.WithLabelValues(strategy).Add(float64(scenarios))
	r.simulationDuration.WithLabelValues(strategy).Observe(latency.Seconds())
}

// RecordMeanPrice records the mean price of a named simulation
func (r *Recorder) RecordMeanPrice(name string, mean float64) {
	r.meanPriceGauge.WithLabelValues(name).Set(mean)
}

// RecordVaR records the current VaR value
func (r *Recorder) RecordVaR(name string, confidenceLevel float64, value float64) {
	r.varGauge.WithLabelValues(name, strconv.FormatFloat(confidenceLevel, 'g', -1, 64)).Set(value)
}

// RecordES records the current ES value
func (r *Recorder) RecordES(name string, confidenceLevel float64, value float64) {
	r.esGauge.WithLabelValues(name, strconv.FormatFloat(confidenceLevel, 'g', -1, 64)).Set(value)
}
