package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/go-logr/logr"
)

// OSExecutor runs commands as real operating system processes.
// The lifetime of every started process is tied to the context passed to StartProcess:
// when the context is cancelled, the process is killed.
type OSExecutor struct {
	procsRunning map[Pid_t]*exec.Cmd
	lock         sync.Mutex
	log          logr.Logger
}

func NewOSExecutor(log logr.Logger) Executor {
	return &OSExecutor{
		procsRunning: make(map[Pid_t]*exec.Cmd),
		log:          log.WithName("os-executor"),
	}
}

func (e *OSExecutor) StartProcess(ctx context.Context, cmd *exec.Cmd, handler ProcessExitHandler) (Pid_t, func(), error) {
	if err := cmd.Start(); err != nil {
		return UnknownPID, nil, err
	}

	pid, err := IntToPidT(cmd.Process.Pid)
	if err != nil {
		return UnknownPID, nil, err
	}

	e.lock.Lock()
	e.procsRunning[pid] = cmd
	e.lock.Unlock()

	var waitErr error
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		waitErr = cmd.Wait()
	}()

	// Watch for context expiration independently of exit monitoring,
	// so processes do not outlive their context even when the caller
	// never asks for exit notifications.
	go func() {
		select {
		case <-exited:
		case <-ctx.Done():
			if stopErr := e.StopProcess(pid); stopErr != nil {
				e.log.V(1).Info("could not stop process on context expiration", "PID", pid, "Error", stopErr.Error())
			}
			<-exited
		}
		e.forget(pid)
	}()

	var notifyOnce sync.Once
	startWaitingForProcessExit := func() {
		notifyOnce.Do(func() {
			if handler == nil {
				return
			}
			go func() {
				<-exited
				exitCode, execErr := getProcessExecResult(waitErr, cmd)
				if ctx.Err() != nil {
					execErr = errors.Join(execErr, ctx.Err())
				}
				handler.OnProcessExited(pid, exitCode, execErr)
			}()
		})
	}

	return pid, startWaitingForProcessExit, nil
}

func (e *OSExecutor) StopProcess(pid Pid_t) error {
	e.lock.Lock()
	cmd, found := e.procsRunning[pid]
	e.lock.Unlock()

	if !found {
		return fmt.Errorf("no running process with PID %d", pid)
	}

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("could not kill process %d: %w", pid, err)
	}
	return nil
}

func (e *OSExecutor) forget(pid Pid_t) {
	e.lock.Lock()
	delete(e.procsRunning, pid)
	e.lock.Unlock()
}

// Returns the process exit code and execution error depending on the result of command wait call.
func getProcessExecResult(waitErr error, cmd *exec.Cmd) (int32, error) {
	var ee *exec.ExitError
	if waitErr == nil {
		return int32(cmd.ProcessState.ExitCode()), nil
	} else if errors.As(waitErr, &ee) {
		return int32(ee.ExitCode()), nil
	} else {
		return UnknownExitCode, waitErr
	}
}

var _ Executor = (*OSExecutor)(nil)
