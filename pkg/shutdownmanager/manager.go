// Package shutdownmanager coordinates graceful shutdown: it turns OS signals
// into context cancellation and waits for registered services to wind down
// within a timeout.
package shutdownmanager

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

type Manager struct {
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewManager returns a manager whose context is cancelled on SIGINT/SIGTERM
// or an explicit Shutdown call.
func NewManager(timeout time.Duration) *Manager {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return &Manager{
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Context is cancelled once shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Defer registers cleanup to run during Shutdown. The manager waits for all
// registered cleanups, up to the timeout.
func (m *Manager) Defer(cleanup func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-m.ctx.Done()
		cleanup()
	}()
}

// Wait blocks until a shutdown signal arrives.
func (m *Manager) Wait() {
	<-m.ctx.Done()
}

// Shutdown cancels the context and waits for registered cleanups to finish,
// giving up after the configured timeout.
func (m *Manager) Shutdown() {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Clean shutdown completed")
	case <-time.After(m.timeout):
		slog.Warn("Shutdown timed out, exiting anyway", "timeout", m.timeout)
	}
}
