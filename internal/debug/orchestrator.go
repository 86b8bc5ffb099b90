package debug

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/lambda-tools/samdbg/internal/containers"
	"github.com/lambda-tools/samdbg/internal/host"
	"github.com/lambda-tools/samdbg/internal/template"
	"github.com/lambda-tools/samdbg/pkg/process"
)

// Collaborators bundles the orchestrator's external dependencies so tests can
// substitute fakes. Nil members get production defaults.
type Collaborators struct {
	// Loader parses the deployment template. Defaults to template.Load.
	Loader template.LoaderFunc

	// Executor runs external processes. Defaults to process.NewOSExecutor.
	Executor process.Executor

	// Builder invokes the external build tool. Defaults to the sam CLI.
	Builder BuildInvoker

	// Containers talks to the container runtime. Defaults to the docker CLI.
	Containers ContainerClient

	// Starter asks the host environment to begin a debug session.
	// Defaults to launching a DAP adapter.
	Starter host.SessionStarter

	// Probe gates the attach stage on invocation readiness.
	// Defaults to no synchronization, matching the observed behavior.
	Probe ReadinessProbe
}

// Orchestrator runs the build → provision → invoke → attach stages in strict
// sequence for a single debug request.
type Orchestrator struct {
	log       logr.Logger
	loader    template.LoaderFunc
	build     *BuildStage
	provision *DebuggerProvisioner
	invoke    *InvocationStage
	attach    *AttachStage
}

func NewOrchestrator(log logr.Logger, c Collaborators) *Orchestrator {
	if c.Loader == nil {
		c.Loader = template.Load
	}
	if c.Executor == nil {
		c.Executor = process.NewOSExecutor(log)
	}
	if c.Builder == nil {
		c.Builder = NewSamCliInvoker(log, c.Executor)
	}
	if c.Containers == nil {
		c.Containers = containers.NewCliClient(log, c.Executor)
	}
	if c.Starter == nil {
		c.Starter = host.NewAdapterSessionStarter(log, c.Executor, host.DefaultAdapterConfig())
	}
	if c.Probe == nil {
		c.Probe = NoReadinessProbe{}
	}

	return &Orchestrator{
		log:       log,
		loader:    c.Loader,
		build:     NewBuildStage(log, c.Builder),
		provision: NewDebuggerProvisioner(log, c.Containers),
		invoke:    NewInvocationStage(log, c.Probe),
		attach:    NewAttachStage(log, c.Starter),
	}
}

// Run executes one debug request. The first stage to fail aborts the remaining
// stages and its error propagates unchanged. Partially created side effects
// (e.g. a created-but-unprovisioned install directory) are left in place for
// the next attempt's idempotent provisioning check to reconcile.
func (o *Orchestrator) Run(ctx context.Context, request DebugRequest) error {
	tpl, err := o.loader(request.TemplatePath)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	resource, err := template.Resolve(tpl, request.HandlerName)
	if err != nil {
		return err
	}
	o.log.V(1).Info("Resolved function resource",
		"Identifier", resource.Identifier,
		"Runtime", resource.Runtime,
		"CodeUri", resource.CodeUri)

	artifact, err := o.build.Build(ctx, request.TemplatePath)
	if err != nil {
		return err
	}
	o.log.V(1).Info("Built function", "ArtifactDirectory", artifact.Directory)

	if err := o.provision.EnsureDebuggerInstalled(ctx, resource.CodeUri, resource.Runtime); err != nil {
		return err
	}

	if err := o.invoke.Invoke(ctx); err != nil {
		return err
	}

	return o.attach.Attach(ctx, resource, request.Port, request.WorkspaceRoot)
}
