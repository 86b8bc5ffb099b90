package debug

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/lambda-tools/samdbg/pkg/resiliency"
)

// ReadinessProbe blocks until the function's execution container is ready for
// a debugger to attach.
type ReadinessProbe interface {
	WaitReady(ctx context.Context) error
}

// NoReadinessProbe returns immediately. This matches the long-standing
// behavior where attach simply follows invoke with no synchronization.
type NoReadinessProbe struct{}

func (NoReadinessProbe) WaitReady(context.Context) error {
	return nil
}

// PortWatcher is the container runtime lookup the port probe needs.
type PortWatcher interface {
	ContainersPublishingPort(ctx context.Context, port int) ([]string, error)
}

var errNoContainerYet = errors.New("no container is publishing the debug port yet")

// ContainerPortProbe polls the container runtime until a running container
// publishes the debug port.
type ContainerPortProbe struct {
	log    logr.Logger
	client PortWatcher
	port   int
}

func NewContainerPortProbe(log logr.Logger, client PortWatcher, port int) *ContainerPortProbe {
	return &ContainerPortProbe{
		log:    log,
		client: client,
		port:   port,
	}
}

func (p *ContainerPortProbe) WaitReady(ctx context.Context) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
		backoff.WithMaxInterval(2*time.Second),
		backoff.WithMaxElapsedTime(0), // The caller's context bounds the wait.
	)

	ids, err := resiliency.RetryGet(ctx, b, func() ([]string, error) {
		ids, lookupErr := p.client.ContainersPublishingPort(ctx, p.port)
		if lookupErr != nil {
			return nil, backoff.Permanent(lookupErr)
		}
		if len(ids) == 0 {
			return nil, errNoContainerYet
		}
		return ids, nil
	})
	if err != nil {
		return fmt.Errorf("function container did not become ready on port %d: %w", p.port, err)
	}

	p.log.V(1).Info("Function container is ready", "Port", p.port, "Containers", ids)
	return nil
}

// InvocationStage starts the local execution of the function.
//
// Starting the function payload itself is still owned by the surrounding
// tooling; this stage currently only waits for readiness. The stage boundary
// is load-bearing regardless: attach depends on invoke having completed, so
// the orchestrator must keep running it even while it is this thin.
type InvocationStage struct {
	log   logr.Logger
	probe ReadinessProbe
}

func NewInvocationStage(log logr.Logger, probe ReadinessProbe) *InvocationStage {
	return &InvocationStage{
		log:   log,
		probe: probe,
	}
}

func (s *InvocationStage) Invoke(ctx context.Context) error {
	return s.probe.WaitReady(ctx)
}

var _ ReadinessProbe = (*ContainerPortProbe)(nil)
var _ ReadinessProbe = NoReadinessProbe{}
