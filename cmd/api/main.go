package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rzzdr/quant-scenario-engine/config"
	"github.com/rzzdr/quant-scenario-engine/internal/publish"
	"github.com/rzzdr/quant-scenario-engine/internal/store"
	"github.com/rzzdr/quant-scenario-engine/pkg/api"
	"github.com/rzzdr/quant-scenario-engine/pkg/metrics"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/backpressure"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/circuit"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

var (
	configFile = flag.String("config", "", "Path to configuration file (defaults to QUANT_CONFIG_PATH or ./config/config.yaml)")
)

func main() {
	// Parse command line flags
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.GetLogger("api.main").Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("api.main")
	defer log.Sync()
	log.Info("Starting Scenario Engine API Service")

	// Create a context that will be canceled on program termination
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics recorder
	reg := metrics.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	// Report publisher
	var publisher publish.Publisher = publish.Nop{}
	if cfg.Kafka.Enabled {
		kp, err := publish.NewKafkaPublisher(publish.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		if err != nil {
			log.Fatalf("Failed to create Kafka publisher: %v", err)
		}
		publisher = publish.NewGuarded(kp, circuit.DefaultConfig())
		log.Infof("Publishing reports to %s on %v", cfg.Kafka.Topic, cfg.Kafka.Brokers)
	}

	// Scenario admission
	var admitter api.Admitter
	if cfg.API.ScenarioRate > 0 {
		burst := cfg.API.ScenarioBurst
		if burst == 0 {
			burst = cfg.API.MaxScenarios
		}
		admitter = backpressure.NewTokenBucketLimiter(cfg.API.ScenarioRate, burst)
	}

	apiServer := api.NewServer(
		api.Config{
			Host:            cfg.API.Host,
			Port:            cfg.API.Port,
			ReadTimeout:     cfg.API.ReadTimeout,
			WriteTimeout:    cfg.API.WriteTimeout,
			MaxScenarios:    cfg.API.MaxScenarios,
			StreamChunkSize: cfg.API.StreamChunkSize,
			AllowOrigin:     cfg.API.AllowOrigin,
			QuietAccess:     cfg.API.QuietAccess,
		},
		api.Dependencies{
			Runs:      store.NewInMemoryRunStore(),
			Publisher: publisher,
			Recorder:  recorder,
			Gatherer:  reg,
			Admitter:  admitter,
		},
	)

	// Start API server
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Errorf("API server error: %v", err)
			cancel() // Cancel context to signal shutdown
		}
	}()

	// Optional standalone metrics listener
	var promServer *metrics.PrometheusServer
	if cfg.Metrics.Prometheus.Enabled {
		promServer = metrics.NewPrometheusServer(cfg.Metrics.Prometheus.Port, reg)
		go func() {
			if err := promServer.Start(); err != nil {
				log.Errorf("Prometheus server error: %v", err)
			}
		}()
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for termination signal or server failure
	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, initiating shutdown", sig)
	case <-ctx.Done():
		log.Info("Server stopped, initiating shutdown")
	}

	// Create a context with timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	// Stop API server
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Errorf("API server shutdown error: %v", err)
	}

	if promServer != nil {
		if err := promServer.Stop(shutdownCtx); err != nil {
			log.Errorf("Prometheus server shutdown error: %v", err)
		}
	}

	// Flush pending reports
	if err := publisher.Close(); err != nil {
		log.Errorf("Publisher shutdown error: %v", err)
	}

	log.Info("Shutdown complete")
}
