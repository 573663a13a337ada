// Package resilience guards calls to the background service so a dead or
// struggling service fails fast instead of stalling every fill.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/domain"
)

// State is the state of a circuit breaker
type State int32

const (
	// StateClosed - calls flow normally
	StateClosed State = iota
	// StateHalfOpen - a limited number of trial calls are let through
	StateHalfOpen
	// StateOpen - calls are rejected immediately
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open trial budget is used up
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds configuration for a circuit breaker
type Config struct {
	// Name identifies this circuit breaker (for logging/metrics)
	Name string

	// MaxRequests is the number of trial calls allowed in half-open state,
	// and the number of consecutive successes that closes the circuit again
	MaxRequests uint32

	// Interval clears the counts periodically while closed. 0 never clears.
	Interval time.Duration

	// Timeout is how long the circuit stays open before trying again
	Timeout time.Duration

	// ReadyToTrip decides, after a failure, whether to open the circuit
	ReadyToTrip func(counts Counts) bool

	// OnStateChange is called with the lock held; keep it short
	OnStateChange func(name string, from, to State)

	// IsSuccessful classifies a call's error
	IsSuccessful func(err error) bool
}

// DefaultConfig suits a local background service: trip after three
// consecutive failures, retry after ten seconds.
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: IgnoreClientErrors,
	}
}

// IgnoreClientErrors treats rejected requests (validation, unknown action,
// other 4xx answers) as successful calls: the service is up, the request
// was wrong. Context cancellation is not held against the service either.
func IgnoreClientErrors(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	if appErr, ok := domain.AsAppError(err); ok {
		return appErr.HTTPStatus > 0 && appErr.HTTPStatus < http.StatusInternalServerError &&
			appErr.HTTPStatus != http.StatusTooManyRequests
	}
	var domainErr *domain.DomainError
	return errors.As(err, &domainErr)
}

// Counts holds the numbers of calls and their outcomes in the current
// generation
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	cfg Config

	mu          sync.Mutex
	state       State
	generation  uint64
	counts      Counts
	expiry      time.Time
	halfOpenReq uint32
	now         func() time.Time
}

// NewCircuitBreaker creates a circuit breaker, filling unset fields with defaults
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	def := DefaultConfig(cfg.Name)
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = def.ReadyToTrip
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = def.IsSuccessful
	}

	cb := &CircuitBreaker{cfg: cfg, now: time.Now}
	cb.toNewGeneration(cb.now())
	return cb
}

// Name returns the breaker's name
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	state, _ := cb.currentState(cb.now())
	return state
}

// Counts returns current counts (for monitoring)
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Execute runs fn if the circuit allows it and records the outcome
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	generation, err := cb.beforeRequest()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		cb.afterRequest(generation, true)
		return err
	}

	err = fn(ctx)
	cb.afterRequest(generation, cb.cfg.IsSuccessful(err))
	return err
}

// Call is Execute for functions that return a value
func Call[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, generation := cb.currentState(cb.now())
	switch state {
	case StateOpen:
		return generation, ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenReq >= cb.cfg.MaxRequests {
			return generation, ErrTooManyRequests
		}
		cb.halfOpenReq++
	}

	cb.counts.Requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterRequest(before uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	state, generation := cb.currentState(now)
	// counts were reset while the call was in flight
	if generation != before {
		return
	}

	if success {
		cb.counts.onSuccess()
		if state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.cfg.MaxRequests {
			cb.setState(StateClosed, now)
		}
		return
	}

	cb.counts.onFailure()
	switch state {
	case StateClosed:
		if cb.cfg.ReadyToTrip(cb.counts) {
			cb.setState(StateOpen, now)
		}
	case StateHalfOpen:
		cb.setState(StateOpen, now)
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.toNewGeneration(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.setState(StateHalfOpen, now)
		}
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state State, now time.Time) {
	if cb.state == state {
		return
	}
	prev := cb.state
	cb.state = state
	cb.toNewGeneration(now)

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, prev, state)
	}
}

func (cb *CircuitBreaker) toNewGeneration(now time.Time) {
	cb.generation++
	cb.counts = Counts{}
	cb.halfOpenReq = 0

	switch cb.state {
	case StateClosed:
		if cb.cfg.Interval > 0 {
			cb.expiry = now.Add(cb.cfg.Interval)
		} else {
			cb.expiry = time.Time{}
		}
	case StateOpen:
		cb.expiry = now.Add(cb.cfg.Timeout)
	case StateHalfOpen:
		cb.expiry = time.Time{}
	}
}

// Group hands out one breaker per name, all built from the same template
type Group struct {
	template Config

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewGroup creates a group; template.Name is replaced per breaker
func NewGroup(template Config) *Group {
	return &Group{
		template: template,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it if needed
func (g *Group) Get(name string) *CircuitBreaker {
	g.mu.RLock()
	cb, ok := g.breakers[name]
	g.mu.RUnlock()
	if ok {
		return cb
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[name]; ok {
		return cb
	}

	cfg := g.template
	cfg.Name = name
	cb = NewCircuitBreaker(cfg)
	g.breakers[name] = cb
	return cb
}

// States returns the state of every breaker in the group
func (g *Group) States() map[string]State {
	g.mu.RLock()
	defer g.mu.RUnlock()

	states := make(map[string]State, len(g.breakers))
	for name, cb := range g.breakers {
		states[name] = cb.State()
	}
	return states
}

// LogStateChanges returns an OnStateChange hook that logs transitions and
// chains to next when it is non-nil
func LogStateChanges(logger *zap.Logger, next func(name string, from, to State)) func(name string, from, to State) {
	return func(name string, from, to State) {
		logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		if next != nil {
			next(name, from, to)
		}
	}
}
