package debug

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/lambda-tools/samdbg/internal/host"
	"github.com/lambda-tools/samdbg/internal/template"
)

// AttachStage asks the host debugging environment to connect to the debugger
// inside the running function container.
type AttachStage struct {
	log     logr.Logger
	starter host.SessionStarter
}

func NewAttachStage(log logr.Logger, starter host.SessionStarter) *AttachStage {
	return &AttachStage{
		log:     log,
		starter: starter,
	}
}

// NewSessionConfig builds the debug session configuration for attaching to the
// function container publishing port. It is a pure function of its inputs:
// for a fixed (resource, port) pair the output is identical across calls.
//
// Both the POSIX and Windows pipe transports are always populated; the host
// environment picks the one matching its own OS.
func NewSessionConfig(resource template.FunctionResource, port int) host.DebugSessionConfig {
	posixPipe := fmt.Sprintf(
		"docker ps -q -f publish=%d | head -1 | xargs -I {} docker exec -i {} %s",
		port, host.DebuggerCommandToken)

	windowsPipe := fmt.Sprintf(
		"docker ps -q -f publish=%d | select-object -first 1 | %% { docker exec -i $_ %s }",
		port, host.DebuggerCommandToken)

	return host.DebugSessionConfig{
		Name:      fmt.Sprintf(".NET Core Docker Attach: %s", resource.Identifier),
		Type:      "coreclr",
		Request:   "attach",
		ProcessID: "1",
		PipeTransport: host.PipeTransport{
			PipeProgram:  "sh",
			PipeArgs:     []string{"-c", posixPipe},
			PipeCwd:      resource.CodeUri,
			DebuggerPath: RemoteDebuggerPath,
		},
		Windows: host.WindowsConfig{
			PipeTransport: host.PipeTransport{
				PipeProgram:  "powershell",
				PipeArgs:     []string{"-c", windowsPipe},
				PipeCwd:      resource.CodeUri,
				DebuggerPath: RemoteDebuggerPath,
			},
		},
		SourceFileMap: map[string]string{
			containerSourceRoot: resource.CodeUri,
		},
	}
}

// Attach requests a debug session against the container publishing port.
// It returns once the session-start request has been issued; waiting for the
// "attached" acknowledgment is the host environment's responsibility.
func (a *AttachStage) Attach(ctx context.Context, resource template.FunctionResource, port int, workspaceRoot string) error {
	config := NewSessionConfig(resource, port)

	a.log.Info("Requesting debug session",
		"Resource", resource.Identifier,
		"Port", port,
		"SessionName", config.Name)

	return a.starter.StartSession(ctx, config, workspaceRoot)
}
