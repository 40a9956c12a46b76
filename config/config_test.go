package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileIsMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "quant-scenario-engine", cfg.App.Name)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 10*time.Second, cfg.API.ReadTimeout)
	assert.Equal(t, "*", cfg.API.AllowOrigin)
	assert.False(t, cfg.API.QuietAccess)
	assert.Equal(t, "PricingEngine", cfg.Simulation.PricingEngine)
	assert.Equal(t, MonteCarloSource, cfg.Simulation.Scenarios)
	assert.Equal(t, 1000, cfg.Simulation.MaxNumberOfScenarios)
	assert.Equal(t, uint64(123), cfg.Simulation.Seed)
	assert.Equal(t, "simulation.reports", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Simulation.Shocks)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
simulation:
  pricing_engine: PricingEngineWithProxyAndResidual
  max_number_of_scenarios: 200
  strategy: batched
  batch_size: 50
  workers: 2
  shocks:
    - type: absolute
      key: CPH:DANSKE
      value: 100
    - type: scale
      value: 0.5
      shocks:
        - type: relative
          key: CPH:NDA-DK
          value: 0.99
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	t.Setenv("QUANT_SIMULATION_SEED", "7")
	t.Setenv("QUANT_APP_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	s := cfg.Simulation
	assert.Equal(t, "PricingEngineWithProxyAndResidual", s.PricingEngine)
	assert.Equal(t, 200, s.MaxNumberOfScenarios)
	assert.Equal(t, 50, s.BatchSize)
	assert.Equal(t, uint64(7), s.Seed)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	require.Len(t, s.Shocks, 2)
	assert.Equal(t, "absolute", s.Shocks[0].Type)
	assert.Equal(t, 100.0, s.Shocks[0].Value)
	require.Len(t, s.Shocks[1].Shocks, 1)
	assert.Equal(t, "CPH:NDA-DK", s.Shocks[1].Shocks[0].Key)

	sh, err := s.Shocks[1].Build()
	require.NoError(t, err)
	assert.Equal(t, "0.5*(CPH:NDA-DK*=0.99)", sh.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative count", func(c *Config) { c.Simulation.MaxNumberOfScenarios = -1 }},
		{"unbounded monte carlo", func(c *Config) { c.Simulation.MaxNumberOfScenarios = 0 }},
		{"zero batch", func(c *Config) { c.Simulation.BatchSize = 0 }},
		{"zero workers", func(c *Config) { c.Simulation.Workers = 0 }},
		{"confidence", func(c *Config) { c.Simulation.Confidence = 1 }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled, c.Kafka.Brokers = true, nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRepositoryConfigLoads(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "batched", cfg.Simulation.Strategy)
	assert.Equal(t, 4, cfg.Simulation.Workers)
}

func TestIsGenerated(t *testing.T) {
	assert.True(t, SimulationConfig{Scenarios: "MonteCarlo"}.IsGenerated())
	assert.True(t, SimulationConfig{Scenarios: "generated"}.IsGenerated())
	assert.False(t, SimulationConfig{Scenarios: "scenarios.csv"}.IsGenerated())
}
