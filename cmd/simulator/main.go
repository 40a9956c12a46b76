package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rzzdr/quant-scenario-engine/config"
	"github.com/rzzdr/quant-scenario-engine/internal/publish"
	"github.com/rzzdr/quant-scenario-engine/internal/simulation"
	"github.com/rzzdr/quant-scenario-engine/pkg/metrics"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/performance"
)

var (
	configFile = flag.String("config", "", "Path to configuration file (defaults to QUANT_CONFIG_PATH or ./config/config.yaml)")
	scenarios  = flag.Int("n", 0, "Number of scenarios, overrides simulation.max_number_of_scenarios")
	strategy   = flag.String("strategy", "", "Evaluation strategy, overrides simulation.strategy")
	experiment = flag.Bool("experiment", false, "Also run the baseline vs proxy pricing stress grid")
	cpuProfile = flag.String("cpuprofile", "", "Write a CPU profile of the run to this file")
	memProfile = flag.String("memprofile", "", "Write a heap profile at the end of the run to this file")
)

func main() {
	// Parse command line flags
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.GetLogger("simulator.main").Fatalf("Failed to load configuration: %v", err)
	}
	if *scenarios > 0 {
		cfg.Simulation.MaxNumberOfScenarios = *scenarios
	}
	if *strategy != "" {
		cfg.Simulation.Strategy = *strategy
	}

	// Initialize logger
	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("simulator.main")
	defer log.Sync()
	log.Info("Starting scenario simulation")

	// Cancel the run on termination
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	var promServer *metrics.PrometheusServer
	if cfg.Metrics.Prometheus.Enabled {
		promServer = metrics.NewPrometheusServer(cfg.Metrics.Prometheus.Port, reg)
		go func() {
			if err := promServer.Start(); err != nil {
				log.Errorf("Prometheus server error: %v", err)
			}
		}()
	}

	profiler := performance.NewProfiler(performance.ProfilerConfig{CPUProfile: *cpuProfile, MemoryProfile: *memProfile})
	if err := profiler.Start(); err != nil {
		log.Fatalf("Failed to start profiler: %v", err)
	}

	sim, err := buildSimulation(cfg.Simulation, recorder)
	if err != nil {
		log.Fatalf("Failed to build simulation: %v", err)
	}

	report, err := sim.ReportAt(ctx, cfg.Simulation.Confidence)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	report.ID = uuid.NewString()
	recorder.RecordVaR(report.Name, report.Risk.Confidence, report.Risk.VaR)
	recorder.RecordES(report.Name, report.Risk.Confidence, report.Risk.ES)

	out, _ := json.Marshal(report)
	log.Infof("Simulation report: %s", out)

	if cfg.Kafka.Enabled {
		publishReport(ctx, cfg.Kafka, report, log)
	}

	if *experiment {
		runExperiment(ctx, sim, cfg.Simulation, log)
	}

	if err := profiler.Stop(); err != nil {
		log.Errorf("Failed to write profiles: %v", err)
	}

	if promServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := promServer.Stop(shutdownCtx); err != nil {
			log.Errorf("Prometheus server shutdown error: %v", err)
		}
	}

	log.Info("Simulation complete")
}

func publishReport(ctx context.Context, cfg config.KafkaConfig, report *simulation.Report, log *logger.Logger) {
	publisher, err := publish.NewKafkaPublisher(publish.Config{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		log.Errorf("Failed to create Kafka publisher: %v", err)
		return
	}
	defer publisher.Close()

	if err := publisher.PublishReport(ctx, report); err != nil {
		log.Errorf("Failed to publish report %s: %v", report.ID, err)
		return
	}
	log.Infof("Published report %s to %s", report.ID, cfg.Topic)
}

func runExperiment(ctx context.Context, sim *simulation.Simulation, cfg config.SimulationConfig, log *logger.Logger) {
	e, err := buildExperiment(sim, cfg.EngineSeed, cfg.Workers)
	if err != nil {
		log.Errorf("Failed to build experiment: %v", err)
		os.Exit(1)
	}
	rows, err := e.Run(ctx)
	if err != nil {
		log.Errorf("Experiment failed: %v", err)
		os.Exit(1)
	}
	for _, r := range rows {
		log.Infof("%-18s %-20s mean=%.4f std=%.4f min=%.4f max=%.4f",
			r.Model, r.Shock, r.Summary.Mean, r.Summary.StdDev, r.Summary.Min, r.Summary.Max)
	}
}
