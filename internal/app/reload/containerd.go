package reload

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/namespaces"
)

const (
	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// DefaultNamespace is the namespace the proxy container usually runs in
	DefaultNamespace = "default"
)

// TaskSignaler delivers a signal to the running task of a container.
type TaskSignaler interface {
	SignalTask(ctx context.Context, containerID string, sig syscall.Signal) error
}

// Container reloads a proxy running as a containerd task.
type Container struct {
	Tasks       TaskSignaler
	ContainerID string
	Signal      syscall.Signal
}

func (c Container) Reload(ctx context.Context) Result {
	if c.ContainerID == "" {
		return Result{Message: "proxy container id is not configured"}
	}
	if err := c.Tasks.SignalTask(ctx, c.ContainerID, c.Signal); err != nil {
		return Result{Message: err.Error()}
	}
	return Result{Success: true, Message: fmt.Sprintf("sent %s to container %s", c.Signal, c.ContainerID)}
}

// ContainerdClient signals tasks through a containerd socket.
type ContainerdClient struct {
	client    *containerd.Client
	namespace string
}

// NewContainerdClient connects to containerd, waiting at most dialTimeout.
func NewContainerdClient(socketPath, namespace string, dialTimeout time.Duration) (*ContainerdClient, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if dialTimeout <= 0 {
		dialTimeout = defaultTimeout
	}
	client, err := containerd.New(socketPath, containerd.WithTimeout(dialTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}
	return &ContainerdClient{client: client, namespace: namespace}, nil
}

// Close closes the containerd client connection
func (c *ContainerdClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// SignalTask sends sig to the task of containerID.
func (c *ContainerdClient) SignalTask(ctx context.Context, containerID string, sig syscall.Signal) error {
	ctx = namespaces.WithNamespace(ctx, c.namespace)

	container, err := c.client.LoadContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", containerID, err)
	}
	task, err := container.Task(ctx, nil)
	if err != nil {
		return fmt.Errorf("container %s has no running task: %w", containerID, err)
	}
	if err := task.Kill(ctx, sig); err != nil {
		return fmt.Errorf("failed to signal task: %w", err)
	}
	return nil
}
