package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/sheetsgate/internal/instrumentation"
)

// ErrNotReady is returned by Acquire while the context is not Ready.
var ErrNotReady = errors.New("Service not initialized")

// State is a lifecycle state of the Context.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Factory builds the Backend. ctx stays valid until the Context is stopped,
// so clients may keep it for token refresh.
type Factory func(ctx context.Context) (Backend, error)

// Context owns the process-wide Backend and its lifecycle.
type Context struct {
	factory Factory
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger

	mu      sync.RWMutex
	state   State
	backend Backend
	cancel  context.CancelFunc
}

// Option configures a Context.
type Option func(*Context)

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Context) { c.metrics = m }
}

// WithAuditLogger sets the audit logger used by tool handlers.
func WithAuditLogger(a *instrumentation.AuditLogger) Option {
	return func(c *Context) { c.audit = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// NewContext returns an Uninitialized Context that builds its Backend with factory.
func NewContext(factory Factory, opts ...Option) *Context {
	c := &Context{factory: factory, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewReadyContext returns a Context that is already Ready with b. It is
// intended for tests and for callers that build the Backend themselves.
func NewReadyContext(b Backend, opts ...Option) *Context {
	c := NewContext(func(context.Context) (Backend, error) { return b, nil }, opts...)
	c.state = StateReady
	c.backend = b
	c.cancel = func() {}
	return c
}

// Start builds the Backend and moves the Context to Ready. On failure the
// Context returns to Uninitialized and the error is returned; callers treat
// it as fatal.
func (c *Context) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("backend context cannot start from state %s", state)
	}
	c.state = StateInitializing
	c.mu.Unlock()

	start := time.Now()
	c.logger.Info("Initializing backend context")

	// The backend outlives the start call, so it gets a context that only
	// Stop cancels.
	lifetime, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b, err := c.factory(lifetime)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil && b == nil {
		err = errors.New("factory returned no backend")
	}
	if err != nil {
		cancel()
		c.state = StateUninitialized
		c.metrics.SetBackendReady(ctx, false)
		return fmt.Errorf("initialize backend context: %w", err)
	}

	c.backend = b
	c.cancel = cancel
	c.state = StateReady
	c.metrics.SetBackendReady(ctx, true)
	c.logger.Info("Backend context ready", slog.Duration("duration", time.Since(start)))
	return nil
}

// Stop releases the Backend and returns the Context to Uninitialized.
// Stopping a Context that is not Ready is a no-op.
func (c *Context) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil
	}
	c.state = StateShuttingDown
	b, cancel := c.backend, c.cancel
	c.mu.Unlock()

	c.logger.Info("Shutting down backend context")
	c.metrics.SetBackendReady(ctx, false)

	var err error
	if closer, ok := b.(io.Closer); ok {
		err = closer.Close()
	}
	cancel()

	c.mu.Lock()
	c.backend = nil
	c.cancel = nil
	c.state = StateUninitialized
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}

// Acquire returns the Backend if the Context is Ready, and ErrNotReady otherwise.
// It never blocks waiting for a state change.
func (c *Context) Acquire() (Backend, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateReady {
		return nil, ErrNotReady
	}
	return c.backend, nil
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ready reports whether the Context is Ready.
func (c *Context) Ready() bool {
	return c.State() == StateReady
}

// Metrics returns the metrics recorder, which may be nil.
func (c *Context) Metrics() *instrumentation.Metrics {
	return c.metrics
}

// AuditLogger returns the audit logger, which may be nil.
func (c *Context) AuditLogger() *instrumentation.AuditLogger {
	return c.audit
}

// Logger returns the context's logger.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}
