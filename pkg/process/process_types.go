package process

import (
	"context"
	"fmt"
	"math"
	"os/exec"
)

// Pid_t is the process identifier type used throughout the module.
type Pid_t int32

const (
	// A valid exit code of a process is a non-negative number. We use UnknownExitCode to indicate that we have not obtained the exit code yet.
	UnknownExitCode int32 = -1

	// UnknownPID is used when a process is not started (or fails to start).
	UnknownPID Pid_t = -1
)

type Executor interface {
	// Starts the process described by given command instance.
	// When the passed context is cancelled, the process is automatically terminated.
	// Returns the process PID and a function that enables process exit notifications delivered to the exit handler.
	StartProcess(ctx context.Context, cmd *exec.Cmd, exitHandler ProcessExitHandler) (pid Pid_t, startWaitForProcessExit func(), err error)

	// Stops the process with a given PID.
	StopProcess(pid Pid_t) error
}

type ProcessExitHandler interface {
	// Indicates that process with a given PID has finished execution
	// If err is nil, the process exit code was properly captured and the exitCode value is valid
	// if err is not nil, there was a problem tracking the process and the exitCode value is not valid
	OnProcessExited(pid Pid_t, exitCode int32, err error)
}

// Make it easy to supply a function as a process exit handler.
type ProcessExitHandlerFunc func(Pid_t, int32, error)

func (f ProcessExitHandlerFunc) OnProcessExited(pid Pid_t, exitCode int32, err error) {
	f(pid, exitCode, err)
}

func IntToPidT(pid int) (Pid_t, error) {
	if pid < math.MinInt32 || pid > math.MaxInt32 {
		return UnknownPID, fmt.Errorf("process identifier %d is out of range", pid)
	}
	return Pid_t(pid), nil
}

func Int64ToPidT(pid int64) (Pid_t, error) {
	if pid < math.MinInt32 || pid > math.MaxInt32 {
		return UnknownPID, fmt.Errorf("process identifier %d is out of range", pid)
	}
	return Pid_t(pid), nil
}
