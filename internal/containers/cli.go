// Package containers invokes the local container runtime CLI (docker) as an
// external process through a process.Executor.
package containers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/lambda-tools/samdbg/pkg/osutil"
	"github.com/lambda-tools/samdbg/pkg/process"
)

var (
	// ErrRuntimeUnavailable indicates the container runtime CLI is missing or the daemon is not responding.
	ErrRuntimeUnavailable = errors.New("container runtime is not available")

	daemonNotRunningRegEx = regexp.MustCompile(`(?i)cannot connect to the docker daemon`)

	// We expect bookkeeping commands (ps, version) to finish within this time.
	// Telemetry on Docker command completion shows a very long tail, so the default is conservative.
	ordinaryCommandTimeout = 30 * time.Second
)

// RuntimeStatus describes whether the container runtime CLI is installed and responsive.
type RuntimeStatus struct {
	Installed bool
	Running   bool
	Error     string
}

// BindMount describes a host directory mounted into a container.
type BindMount struct {
	Source string
	Target string
}

// OneShotOptions describe a short-lived "run --rm" container execution.
type OneShotOptions struct {
	Image      string
	Entrypoint string
	Command    []string
	Mounts     []BindMount

	// Optional destinations for container output, in addition to internal buffering.
	StdOutStream io.Writer
	StdErrStream io.Writer
}

type CliClient struct {
	log      logr.Logger
	executor process.Executor
}

func NewCliClient(log logr.Logger, executor process.Executor) *CliClient {
	return &CliClient{
		log:      log,
		executor: executor,
	}
}

// CheckStatus runs a cheap runtime command to determine whether the docker CLI
// is installed and the daemon is responding.
func (c *CliClient) CheckStatus(ctx context.Context) RuntimeStatus {
	cmd := makeRuntimeCommand("version", "--format", "{{json .}}")
	_, errBuf, err := c.runBufferedCommand(ctx, "Status", cmd, nil, nil, ordinaryCommandTimeout)

	switch {
	case errors.Is(err, exec.ErrNotFound):
		return RuntimeStatus{Installed: false, Running: false, Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return RuntimeStatus{Installed: true, Running: false, Error: "the container runtime CLI timed out while checking status"}
	case err != nil:
		// Prefer returning stderr from the runtime command so users can diagnose
		// the underlying runtime issue; fall back to the error message.
		stdErrString := strings.TrimSpace(errBuf.String())
		if stdErrString == "" {
			stdErrString = err.Error()
		}
		return RuntimeStatus{Installed: true, Running: false, Error: stdErrString}
	default:
		return RuntimeStatus{Installed: true, Running: true}
	}
}

// RunOneShot runs a container to completion and returns its exit code.
// No timeout is applied: one-shot executions may pull images and download
// artifacts, which can take arbitrarily long.
func (c *CliClient) RunOneShot(ctx context.Context, options OneShotOptions) (int32, error) {
	args := []string{"run", "--rm"}

	for _, mount := range options.Mounts {
		args = append(args, "--mount", fmt.Sprintf("type=bind,src=%s,dst=%s", mount.Source, mount.Target))
	}

	if options.Entrypoint != "" {
		args = append(args, "--entrypoint", options.Entrypoint)
	}

	args = append(args, options.Image)
	args = append(args, options.Command...)

	cmd := makeRuntimeCommand(args...)
	cmd.Stdout = options.StdOutStream
	cmd.Stderr = options.StdErrStream

	pic := make(chan process.ProcessExitInfo, 1)
	peh := process.NewChannelProcessExitHandler(pic)

	c.log.V(1).Info("Running container command", "Command", cmd.String())
	_, startWaitForProcessExit, err := c.executor.StartProcess(ctx, cmd, peh)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = errors.Join(ErrRuntimeUnavailable, err)
		}
		return process.UnknownExitCode, fmt.Errorf("failed to start container run command: %w", err)
	}
	startWaitForProcessExit()

	exitInfo := <-pic
	if exitInfo.Err != nil {
		return process.UnknownExitCode, exitInfo.Err
	}
	return exitInfo.ExitCode, nil
}

// ContainersPublishingPort returns the IDs of running containers that publish the given host port.
func (c *CliClient) ContainersPublishingPort(ctx context.Context, port int) ([]string, error) {
	cmd := makeRuntimeCommand("ps", "-q", "-f", fmt.Sprintf("publish=%d", port))
	outBuf, errBuf, err := c.runBufferedCommand(ctx, "ContainersPublishingPort", cmd, nil, nil, ordinaryCommandTimeout)
	if err != nil {
		return nil, normalizeCliError(err, errBuf)
	}

	var ids []string
	for _, chunk := range bytes.Split(outBuf.Bytes(), osutil.LF()) {
		chunk = bytes.TrimSpace(chunk)
		if len(chunk) == 0 {
			continue
		}
		ids = append(ids, string(chunk))
	}
	return ids, nil
}

func (c *CliClient) streamCommand(ctx context.Context, commandName string, cmd *exec.Cmd, stdOutWriter io.Writer, stdErrWriter io.Writer) (<-chan error, error) {
	cmd.Stdout = stdOutWriter
	cmd.Stderr = stdErrWriter

	exitCh := make(chan error)
	exitHandler := func(_ process.Pid_t, exitCode int32, err error) {
		defer close(exitCh)
		if err != nil {
			exitCh <- err
			return
		}

		if exitCode != 0 {
			exitCh <- fmt.Errorf("container runtime command '%s' returned with non-zero exit code %d", commandName, exitCode)
		}
	}

	c.log.V(1).Info("Running container runtime command", "Command", cmd.String())
	_, startWaitForProcessExit, err := c.executor.StartProcess(ctx, cmd, process.ProcessExitHandlerFunc(exitHandler))
	if err != nil {
		return nil, errors.Join(err, fmt.Errorf("failed to start container runtime command '%s'", commandName))
	}
	startWaitForProcessExit()

	return exitCh, nil
}

func (c *CliClient) runBufferedCommand(ctx context.Context, commandName string, cmd *exec.Cmd, stdOutWriter io.Writer, stdErrWriter io.Writer, timeout time.Duration) (*bytes.Buffer, *bytes.Buffer, error) {
	effectiveCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outBuf := new(bytes.Buffer)
	if stdOutWriter != nil {
		stdOutWriter = io.MultiWriter(stdOutWriter, outBuf)
	} else {
		stdOutWriter = outBuf
	}

	errBuf := new(bytes.Buffer)
	if stdErrWriter != nil {
		stdErrWriter = io.MultiWriter(stdErrWriter, errBuf)
	} else {
		stdErrWriter = errBuf
	}

	exitCh, err := c.streamCommand(effectiveCtx, commandName, cmd, stdOutWriter, stdErrWriter)
	if err == nil {
		// If we successfully started running, wait for the command to finish
		exitErr := <-exitCh
		if exitErr != nil {
			err = exitErr
		}
	}

	if err != nil {
		return outBuf, errBuf, fmt.Errorf("%w: command output: Stdout: '%s' Stderr: '%s'", err, outBuf.String(), errBuf.String())
	}

	return outBuf, errBuf, nil
}

// normalizeCliError folds well-known runtime stderr lines into typed errors
// so callers can classify failures with errors.Is.
func normalizeCliError(err error, errBuf *bytes.Buffer) error {
	if errBuf == nil {
		return err
	}

	for _, line := range bytes.Split(errBuf.Bytes(), osutil.LF()) {
		if len(line) == 0 {
			continue
		}
		if daemonNotRunningRegEx.Match(line) {
			return errors.Join(ErrRuntimeUnavailable, err)
		}
	}

	return err
}

func makeRuntimeCommand(args ...string) *exec.Cmd {
	return exec.Command("docker", args...)
}
