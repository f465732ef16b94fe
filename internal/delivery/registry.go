// Package delivery routes emergency notices to the targets configured by
// the user.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/mayberry/internal/emergency"
)

// Handler delivers a message to the target address it was registered for.
type Handler func(ctx context.Context, target, message string) error

// Registry routes messages to the appropriate delivery handler based on
// target prefix (e.g. "log", "telegram:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for targets starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver calls the handler with the longest prefix matching target.
func (r *Registry) Deliver(ctx context.Context, target, message string) error {
	r.mu.RLock()
	var match string
	var handler Handler
	for prefix, h := range r.handlers {
		if strings.HasPrefix(target, prefix) && len(prefix) >= len(match) {
			match, handler = prefix, h
		}
	}
	r.mu.RUnlock()

	if handler == nil {
		return fmt.Errorf("no delivery handler for target: %s", target)
	}
	return handler(ctx, target, message)
}

// DeliverAll sends message to every target. A failing target does not stop
// the others; all failures are returned joined.
func (r *Registry) DeliverAll(ctx context.Context, targets []string, message string) error {
	var errs []error
	for _, target := range targets {
		if err := r.Deliver(ctx, target, message); err != nil {
			errs = append(errs, fmt.Errorf("deliver to %s: %w", target, err))
		}
	}
	return errors.Join(errs...)
}

// LogHandler writes the message to logger at warn level.
func LogHandler(logger *slog.Logger) Handler {
	return func(_ context.Context, target, message string) error {
		logger.Warn("emergency escalation", "target", target, "notice", message)
		return nil
	}
}

// Escalator sends emergency notices to the configured targets in the
// background. Each notice gets at most timeout across all targets.
type Escalator struct {
	reg     *Registry
	targets []string
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// Escalator returns an Escalator delivering through r.
func (r *Registry) Escalator(targets []string, timeout time.Duration, logger *slog.Logger) *Escalator {
	return &Escalator{reg: r, targets: targets, timeout: timeout, logger: logger}
}

// Escalate renders action and starts delivering it. It returns at once;
// failures and timeouts are logged. The caller's cancellation does not cut a
// delivery short, only the timeout does.
func (e *Escalator) Escalate(ctx context.Context, action emergency.Action) {
	text := action.Text()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		if err := e.reg.DeliverAll(ctx, e.targets, text); err != nil {
			e.logger.Error("escalation delivery failed", "error", err)
		}
	}()
}

// Wait blocks until every started delivery has finished or timed out.
func (e *Escalator) Wait() {
	e.wg.Wait()
}
