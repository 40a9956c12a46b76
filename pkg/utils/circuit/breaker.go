// Package circuit guards calls to an unreliable dependency, such as a broker,
// with a closed / open / half-open breaker.
package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrOpen is returned without calling through while the breaker is open
	ErrOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe budget is spent
	ErrTooManyRequests = errors.New("too many requests")
)

type Config struct {
	MaxFailures int           // consecutive failures before opening
	Timeout     time.Duration // time spent open before probing
	MaxRequests int           // probes allowed while half-open
}

func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		MaxRequests: 1,
	}
}

type Breaker struct {
	name        string
	config      Config
	state       State
	failures    int
	requests    int
	lastFailure time.Time
	now         func() time.Time
	mu          sync.Mutex
	log         *logger.Logger
}

func NewBreaker(name string, config Config) *Breaker {
	def := DefaultConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = def.MaxRequests
	}
	return &Breaker{
		name:   name,
		config: config,
		now:    time.Now,
		log:    logger.GetLogger(fmt.Sprintf("circuit.%s", name)),
	}
}

// Do runs fn unless the breaker is open. Context cancellation of the caller
// does not count as a failure of the dependency.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())))
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.config.Timeout {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.requests >= b.config.MaxRequests {
			return ErrTooManyRequests
		}
		b.requests++
		return nil
	}
	return ErrOpen
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.transition(StateClosed)
		}
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if b.state == StateHalfOpen || b.failures >= b.config.MaxFailures {
		b.transition(StateOpen)
	}
}

// transition must be called with mu held
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.requests = 0
	if to == StateClosed {
		b.failures = 0
	}
	if to == StateOpen {
		b.log.Warnf("Circuit breaker '%s' transitioned from %s to %s", b.name, from, to)
		return
	}
	b.log.Infof("Circuit breaker '%s' transitioned from %s to %s", b.name, from, to)
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}

func (b *Breaker) Name() string {
	return b.name
}
