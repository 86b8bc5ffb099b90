// Package debug implements the build → provision → invoke → attach pipeline
// for debugging a serverless function inside its local execution container.
package debug

import "path/filepath"

// DebugRequest is the immutable input to one orchestration run.
type DebugRequest struct {
	// TemplatePath locates the SAM deployment template.
	TemplatePath string

	// HandlerName identifies the function's entry point within the template.
	HandlerName string

	// Port is the host port the function container publishes for debugging.
	Port int

	// WorkspaceRoot is the host directory the debug session treats as its workspace.
	WorkspaceRoot string
}

// BuildArtifact is the output location of a build stage run.
// Downstream stages do not consume it yet; full build-directory plumbing is pending.
type BuildArtifact struct {
	Directory string
}

const (
	// debuggerDirName is the directory created under the function's code root
	// to hold the provisioned debugger binary.
	debuggerDirName = ".vsdbg"

	// provisionMountTarget is where the install directory is mounted inside
	// the provisioning container.
	provisionMountTarget = "/vsdbg"

	// RemoteDebuggerPath is where the local invoke mounts the provisioned
	// debugger inside the running function container. The attach stage
	// references this path without verifying it; the provisioner must have
	// populated the backing host directory.
	RemoteDebuggerPath = "/tmp/lambci_debug_files/vsdbg"

	// containerSourceRoot is the fixed code root inside the function container,
	// mapped back to the host code directory for breakpoint resolution.
	containerSourceRoot = "/var/task"

	// provisionImageRepo is the base image for provisioning containers,
	// parameterized by the function's declared runtime tag.
	provisionImageRepo = "lambci/lambda"

	debuggerInstallScript = "curl -sSL https://aka.ms/getvsdbgsh | bash /dev/stdin -v latest -l " + provisionMountTarget
)

// DebuggerInstallDir returns the host directory the debugger is provisioned into.
func DebuggerInstallDir(codeUri string) string {
	return filepath.Join(codeUri, debuggerDirName)
}

func provisionImage(runtime string) string {
	return provisionImageRepo + ":" + runtime
}
