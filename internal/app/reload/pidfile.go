package reload

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile signals the proxy master process whose pid is stored in Path.
type PIDFile struct {
	Path   string
	Signal syscall.Signal
}

func (p PIDFile) Reload(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Result{Message: err.Error()}
	}
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return Result{Message: fmt.Sprintf("read pid file: %v", err)}
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return Result{Message: fmt.Sprintf("pid file %s does not contain a pid", p.Path)}
	}
	if err := syscall.Kill(pid, p.Signal); err != nil {
		return Result{Message: fmt.Sprintf("signal pid %d: %v", pid, err)}
	}
	return Result{Success: true, Message: fmt.Sprintf("sent %s to pid %d", p.Signal, pid)}
}
