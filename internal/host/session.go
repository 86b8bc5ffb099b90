// Package host defines the contract with the hosting debug environment: the
// configuration shape of a debug session and the ways a session can be started.
package host

import "context"

// DebuggerCommandToken is the placeholder the host environment substitutes
// with the actual remote debugger launch command when the pipe runs.
const DebuggerCommandToken = "${debuggerCommand}"

// PipeTransport tunnels the debugger wire protocol through a shell command
// executed against a process inside a running container.
type PipeTransport struct {
	PipeProgram  string   `json:"pipeProgram"`
	PipeArgs     []string `json:"pipeArgs"`
	PipeCwd      string   `json:"pipeCwd,omitempty"`
	DebuggerPath string   `json:"debuggerPath"`
}

// WindowsConfig carries the Windows-specific overrides of a session
// configuration. Both the POSIX and the Windows variants are always populated;
// the host environment selects based on its own OS.
type WindowsConfig struct {
	PipeTransport PipeTransport `json:"pipeTransport"`
}

// DebugSessionConfig is the session-start request payload handed to a
// SessionStarter. Constructed fresh per attach call; never persisted by the core.
type DebugSessionConfig struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Request       string            `json:"request"`
	ProcessID     string            `json:"processId,omitempty"`
	PipeTransport PipeTransport     `json:"pipeTransport"`
	Windows       WindowsConfig     `json:"windows"`
	SourceFileMap map[string]string `json:"sourceFileMap"`
}

// SessionStarter requests the host environment begin a debug session.
// Implementations return once the session-start request has been issued,
// not once the session reaches "attached" state.
type SessionStarter interface {
	StartSession(ctx context.Context, config DebugSessionConfig, workspaceRoot string) error
}
