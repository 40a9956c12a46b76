// Package performance writes pprof profiles of a run.
package performance

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

// ProfilerConfig holds the output paths of the profiles. An empty path disables that profile.
type ProfilerConfig struct {
	CPUProfile    string
	MemoryProfile string
}

// Enabled reports whether any profile is configured
func (c ProfilerConfig) Enabled() bool {
	return c.CPUProfile != "" || c.MemoryProfile != ""
}

// Profiler manages one profiling session
type Profiler struct {
	config    ProfilerConfig
	cpuFile   *os.File
	running   int64
	startTime time.Time
	log       *logger.Logger
}

// NewProfiler creates a new performance profiler
func NewProfiler(config ProfilerConfig) *Profiler {
	return &Profiler{
		config: config,
		log:    logger.GetLogger("performance.profiler"),
	}
}

// Start starts CPU profiling when configured
func (p *Profiler) Start() error {
	if !atomic.CompareAndSwapInt64(&p.running, 0, 1) {
		return fmt.Errorf("profiler is already running")
	}
	p.startTime = time.Now()

	if p.config.CPUProfile == "" {
		return nil
	}

	f, err := create(p.config.CPUProfile)
	if err != nil {
		atomic.StoreInt64(&p.running, 0)
		return fmt.Errorf("failed to create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		atomic.StoreInt64(&p.running, 0)
		return fmt.Errorf("failed to start CPU profiling: %w", err)
	}
	p.cpuFile = f
	p.log.Infof("Started CPU profiling to %s", p.config.CPUProfile)
	return nil
}

// Stop stops CPU profiling and writes the heap profile
func (p *Profiler) Stop() error {
	if !atomic.CompareAndSwapInt64(&p.running, 1, 0) {
		return fmt.Errorf("profiler is not running")
	}

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			return fmt.Errorf("failed to close CPU profile: %w", err)
		}
		p.cpuFile = nil
		p.log.Info("Stopped CPU profiling")
	}

	if p.config.MemoryProfile != "" {
		if err := p.saveMemoryProfile(); err != nil {
			return err
		}
	}

	p.log.Infof("Performance profiler stopped after %v", time.Since(p.startTime))
	return nil
}

// IsRunning returns true if the profiler is running
func (p *Profiler) IsRunning() bool {
	return atomic.LoadInt64(&p.running) == 1
}

func (p *Profiler) saveMemoryProfile() error {
	f, err := create(p.config.MemoryProfile)
	if err != nil {
		return fmt.Errorf("failed to create memory profile file: %w", err)
	}
	defer f.Close()

	// Up-to-date allocation statistics
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}
	p.log.Infof("Saved memory profile to %s", p.config.MemoryProfile)
	return nil
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}
