package reload

import (
	"context"
	"fmt"
	"io"

	"github.com/sifan077/redirector/config"
	"go.uber.org/zap"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// FromConfig builds the reloader selected by cfg.Driver. The closer releases driver connections.
// An unreachable containerd socket does not fail startup: every reload reports the dial error instead.
func FromConfig(cfg config.ReloadConfig, logger *zap.Logger) (Reloader, io.Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sig, err := ParseSignal(cfg.Signal)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Driver {
	case config.ReloadDriverContainerd:
		client, err := NewContainerdClient(cfg.ContainerdSocket, cfg.Namespace, cfg.Timeout)
		if err != nil {
			logger.Warn("containerd unavailable, proxy reloads will fail", zap.Error(err))
			msg := err.Error()
			return ReloaderFunc(func(context.Context) Result {
				return Result{Message: msg}
			}), nopCloser{}, nil
		}
		return Container{Tasks: client, ContainerID: cfg.ContainerID, Signal: sig}, client, nil
	case config.ReloadDriverPIDFile:
		return PIDFile{Path: cfg.PIDFile, Signal: sig}, nopCloser{}, nil
	case config.ReloadDriverNone, "":
		return Nop{}, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("reload: unknown driver %q", cfg.Driver)
	}
}
