package config

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rzzdr/quant-scenario-engine/internal/shock"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/errors"
)

// MonteCarloSource selects the built-in Monte Carlo generator instead of a scenario file
const MonteCarloSource = "MonteCarlo"

// IsGenerated reports whether the scenarios setting selects the Monte Carlo generator.
// "generated" is accepted as an alias.
func (s SimulationConfig) IsGenerated() bool {
	return strings.EqualFold(s.Scenarios, MonteCarloSource) || strings.EqualFold(s.Scenarios, "generated")
}

// Config for the whole application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	API        APIConfig        `mapstructure:"api"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

// General application configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// Configuration for the API server
type APIConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxScenarios    int           `mapstructure:"max_scenarios"`
	StreamChunkSize int           `mapstructure:"stream_chunk_size"`
	// ScenarioRate is the number of scenarios admitted per second; 0 disables the limit
	ScenarioRate  float64 `mapstructure:"scenario_rate"`
	ScenarioBurst int     `mapstructure:"scenario_burst"`
	AllowOrigin   string  `mapstructure:"allow_origin"`
	QuietAccess   bool    `mapstructure:"quiet_access"`
}

// Configuration for report publishing
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Configuration for metrics
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// Configuration for Prometheus metrics
type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Configuration of the default simulation
type SimulationConfig struct {
	// PricingEngine is a registered engine name
	PricingEngine string `mapstructure:"pricing_engine"`
	// Scenarios is MonteCarloSource or the path of a .csv or .xlsx table
	Scenarios            string `mapstructure:"scenarios"`
	MaxNumberOfScenarios int    `mapstructure:"max_number_of_scenarios"`
	// Portfolio is the path of a .yaml or .json portfolio; empty selects the reference portfolio
	Portfolio  string             `mapstructure:"portfolio"`
	Seed       uint64             `mapstructure:"seed"`
	EngineSeed uint64             `mapstructure:"engine_seed"`
	Strategy   string             `mapstructure:"strategy"`
	BatchSize  int                `mapstructure:"batch_size"`
	Workers    int                `mapstructure:"workers"`
	Confidence float64            `mapstructure:"confidence"`
	Shocks     []shock.Definition `mapstructure:"shocks"`
}

// Load reads the configuration from path and QUANT_ environment variables.
// An empty path falls back to GetConfigPath; a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = GetConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("QUANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the values that cannot be fixed by defaults
func (c *Config) Validate() error {
	s := c.Simulation
	switch {
	case s.MaxNumberOfScenarios < 0:
		return errors.InvalidArgument("simulation.max_number_of_scenarios must not be negative")
	case s.MaxNumberOfScenarios == 0 && s.IsGenerated():
		return errors.InvalidArgument("simulation.max_number_of_scenarios must be positive for Monte Carlo scenarios")
	case s.BatchSize <= 0:
		return errors.InvalidArgument("simulation.batch_size must be positive")
	case s.Workers <= 0:
		return errors.InvalidArgument("simulation.workers must be positive")
	case s.Confidence <= 0 || s.Confidence >= 1:
		return errors.InvalidArgument("simulation.confidence must be in (0, 1)")
	case c.API.ScenarioRate < 0 || c.API.ScenarioBurst < 0:
		return errors.InvalidArgument("api.scenario_rate and api.scenario_burst must not be negative")
	case c.Kafka.Enabled && len(c.Kafka.Brokers) == 0:
		return errors.InvalidArgument("kafka.brokers must be set when kafka is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "quant-scenario-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "60s")
	v.SetDefault("api.shutdown_timeout", "30s")
	v.SetDefault("api.max_scenarios", 1000000)
	v.SetDefault("api.stream_chunk_size", 500)
	v.SetDefault("api.scenario_rate", 0)
	v.SetDefault("api.scenario_burst", 0)
	v.SetDefault("api.allow_origin", "*")
	v.SetDefault("api.quiet_access", false)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "simulation.reports")
	v.SetDefault("kafka.write_timeout", "10s")

	// Metrics defaults
	v.SetDefault("metrics.prometheus.enabled", false)
	v.SetDefault("metrics.prometheus.port", 9090)

	// Simulation defaults
	v.SetDefault("simulation.pricing_engine", "PricingEngine")
	v.SetDefault("simulation.scenarios", MonteCarloSource)
	v.SetDefault("simulation.max_number_of_scenarios", 1000)
	v.SetDefault("simulation.portfolio", "")
	v.SetDefault("simulation.seed", 123)
	v.SetDefault("simulation.engine_seed", 0)
	v.SetDefault("simulation.strategy", "per_scenario")
	v.SetDefault("simulation.batch_size", 1000)
	v.SetDefault("simulation.workers", 1)
	v.SetDefault("simulation.confidence", 0.99)
	v.SetDefault("simulation.shocks", []map[string]any{})
}

func GetConfigPath() string {
	configPath := os.Getenv("QUANT_CONFIG_PATH")
	if configPath != "" {
		return configPath
	}

	return "./config/config.yaml"
}
