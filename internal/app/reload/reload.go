package reload

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Second

// Result is the outcome of a reload attempt. It never carries an error value so callers
// can report "config regenerated, reload failed" without unwinding.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Reloader asks the edge proxy to pick up new configuration.
type Reloader interface {
	Reload(ctx context.Context) Result
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func(ctx context.Context) Result

func (f ReloaderFunc) Reload(ctx context.Context) Result { return f(ctx) }

// Observer is notified of every reload outcome.
type Observer interface {
	ObserveReload(success bool, duration time.Duration)
}

// Coordinator bounds a Reloader with a timeout and turns panics and hangs into failed results.
type Coordinator struct {
	reloader Reloader
	timeout  time.Duration
	logger   *zap.Logger
	observer Observer
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Reloader Reloader
	Timeout  time.Duration
	Logger   *zap.Logger
	Observer Observer
}

// NewCoordinator returns a coordinator around cfg.Reloader; a nil reloader reloads nothing.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reloader := cfg.Reloader
	if reloader == nil {
		reloader = Nop{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Coordinator{reloader: reloader, timeout: timeout, logger: logger, observer: cfg.Observer}
}

// Reload signals the proxy and waits at most the configured timeout.
func (c *Coordinator) Reload(ctx context.Context) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Result{Message: fmt.Sprintf("reload panicked: %v", r)}
			}
		}()
		done <- c.reloader.Reload(ctx)
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Result{Message: fmt.Sprintf("reload timed out after %s", c.timeout)}
	}

	elapsed := time.Since(start)
	if c.observer != nil {
		c.observer.ObserveReload(res.Success, elapsed)
	}
	if res.Success {
		c.logger.Info("edge proxy reloaded", zap.String("message", res.Message), zap.Duration("duration", elapsed))
	} else {
		c.logger.Warn("edge proxy reload failed", zap.String("message", res.Message), zap.Duration("duration", elapsed))
	}
	return res
}

// Nop is used when no proxy is managed.
type Nop struct{}

func (Nop) Reload(context.Context) Result {
	return Result{Success: true, Message: "reload disabled"}
}

// ParseSignal maps a signal name such as "HUP" or "SIGUSR1" to a signal.
func ParseSignal(name string) (syscall.Signal, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "SIG") {
	case "", "HUP":
		return syscall.SIGHUP, nil
	case "USR1":
		return syscall.SIGUSR1, nil
	case "USR2":
		return syscall.SIGUSR2, nil
	case "0":
		return syscall.Signal(0), nil
	}
	return 0, fmt.Errorf("reload: unsupported signal %q", name)
}
