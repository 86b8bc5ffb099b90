package containers

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lambda-tools/samdbg/pkg/testutil"
)

func TestCheckStatusRunning(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	executor := testutil.NewTestProcessExecutor(ctx)
	executor.InstallAutoExecution(testutil.AutoExecution{
		Condition: testutil.ProcessSearchCriteria{Command: []string{"docker", "version"}},
		RunCommand: func(pe *testutil.ProcessExecution) int32 {
			fmt.Fprintln(pe.Cmd.Stdout, `{"Client":{"Version":"24.0.0"}}`)
			return 0
		},
	})

	client := NewCliClient(testutil.NewLogForTesting(t.Name()), executor)

	status := client.CheckStatus(ctx)
	require.True(t, status.Installed)
	require.True(t, status.Running)
	require.Empty(t, status.Error)
}

func TestCheckStatusDaemonNotRunning(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	executor := testutil.NewTestProcessExecutor(ctx)
	executor.InstallAutoExecution(testutil.AutoExecution{
		Condition: testutil.ProcessSearchCriteria{Command: []string{"docker", "version"}},
		RunCommand: func(pe *testutil.ProcessExecution) int32 {
			fmt.Fprintln(pe.Cmd.Stderr, "Cannot connect to the Docker daemon at unix:///var/run/docker.sock")
			return 1
		},
	})

	client := NewCliClient(testutil.NewLogForTesting(t.Name()), executor)

	status := client.CheckStatus(ctx)
	require.True(t, status.Installed)
	require.False(t, status.Running)
	require.Contains(t, status.Error, "Cannot connect to the Docker daemon")
}

func TestRunOneShotArguments(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	executor := testutil.NewTestProcessExecutor(ctx)
	executor.InstallAutoExecution(testutil.AutoExecution{
		Condition: testutil.ProcessSearchCriteria{Command: []string{"docker", "run", "--rm"}},
		RunCommand: func(pe *testutil.ProcessExecution) int32 {
			return 0
		},
	})

	client := NewCliClient(testutil.NewLogForTesting(t.Name()), executor)

	exitCode, err := client.RunOneShot(ctx, OneShotOptions{
		Image:      "lambci/lambda:dotnetcore2.1",
		Entrypoint: "bash",
		Command:    []string{"-c", "echo hi"},
		Mounts: []BindMount{
			{Source: "/src/app/.vsdbg", Target: "/vsdbg"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int32(0), exitCode)

	executions := executor.FindAll([]string{"docker", "run", "--rm"}, "", nil)
	require.Len(t, executions, 1)
	require.Equal(t, []string{
		"docker", "run", "--rm",
		"--mount", "type=bind,src=/src/app/.vsdbg,dst=/vsdbg",
		"--entrypoint", "bash",
		"lambci/lambda:dotnetcore2.1",
		"-c", "echo hi",
	}, executions[0].Cmd.Args)
}

func TestRunOneShotReportsExitCode(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	executor := testutil.NewTestProcessExecutor(ctx)
	executor.InstallAutoExecution(testutil.AutoExecution{
		Condition: testutil.ProcessSearchCriteria{Command: []string{"docker", "run"}},
		RunCommand: func(pe *testutil.ProcessExecution) int32 {
			fmt.Fprintln(pe.Cmd.Stderr, "out of memory")
			return testutil.KilledProcessExitCode
		},
	})

	client := NewCliClient(testutil.NewLogForTesting(t.Name()), executor)

	var errBuf bytes.Buffer
	exitCode, err := client.RunOneShot(ctx, OneShotOptions{
		Image:        "lambci/lambda:dotnetcore2.1",
		StdErrStream: &errBuf,
	})
	require.NoError(t, err)
	require.Equal(t, int32(testutil.KilledProcessExitCode), exitCode)
	require.Contains(t, errBuf.String(), "out of memory")
}

func TestContainersPublishingPort(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	executor := testutil.NewTestProcessExecutor(ctx)
	executor.InstallAutoExecution(testutil.AutoExecution{
		Condition: testutil.ProcessSearchCriteria{Command: []string{"docker", "ps", "-q"}},
		RunCommand: func(pe *testutil.ProcessExecution) int32 {
			fmt.Fprintf(pe.Cmd.Stdout, "1a2b3c4d\n5e6f7a8b\n")
			return 0
		},
	})

	client := NewCliClient(testutil.NewLogForTesting(t.Name()), executor)

	ids, err := client.ContainersPublishingPort(ctx, 5858)
	require.NoError(t, err)
	require.Equal(t, []string{"1a2b3c4d", "5e6f7a8b"}, ids)

	executions := executor.FindAll([]string{"docker", "ps"}, "publish=5858", nil)
	require.Len(t, executions, 1)
}

func TestContainersPublishingPortNoContainers(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	executor := testutil.NewTestProcessExecutor(ctx)
	executor.InstallAutoExecution(testutil.AutoExecution{
		Condition: testutil.ProcessSearchCriteria{Command: []string{"docker", "ps"}},
		RunCommand: func(pe *testutil.ProcessExecution) int32 {
			return 0
		},
	})

	client := NewCliClient(testutil.NewLogForTesting(t.Name()), executor)

	ids, err := client.ContainersPublishingPort(ctx, 5858)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestContainersPublishingPortDaemonDown(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	executor := testutil.NewTestProcessExecutor(ctx)
	executor.InstallAutoExecution(testutil.AutoExecution{
		Condition: testutil.ProcessSearchCriteria{Command: []string{"docker", "ps"}},
		RunCommand: func(pe *testutil.ProcessExecution) int32 {
			fmt.Fprintln(pe.Cmd.Stderr, "Cannot connect to the Docker daemon at unix:///var/run/docker.sock")
			return 1
		},
	})

	client := NewCliClient(testutil.NewLogForTesting(t.Name()), executor)

	_, err := client.ContainersPublishingPort(ctx, 5858)
	require.ErrorIs(t, err, ErrRuntimeUnavailable)
}
