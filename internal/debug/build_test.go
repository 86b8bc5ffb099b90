package debug

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lambda-tools/samdbg/pkg/testutil"
)

type fakeBuildInvoker struct {
	options []BuildOptions
	err     error
}

func (f *fakeBuildInvoker) Build(_ context.Context, options BuildOptions) error {
	f.options = append(f.options, options)
	return f.err
}

func TestBuildAlwaysUsesDebugMode(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	invoker := &fakeBuildInvoker{}
	stage := NewBuildStage(testutil.NewLogForTesting(t.Name()), invoker)

	templatePath := filepath.Join("/work", "template.yaml")
	artifact, err := stage.Build(ctx, templatePath)
	require.NoError(t, err)

	require.Len(t, invoker.options, 1)
	options := invoker.options[0]
	require.Equal(t, templatePath, options.TemplatePath)
	require.Equal(t, "debug", options.EnvironmentVariables["SAM_BUILD_MODE"])
	require.False(t, options.UseContainer)

	wantDir := filepath.Join("/work", ".aws-sam", "build")
	require.Equal(t, wantDir, options.OutputDirectory)
	require.Equal(t, wantDir, artifact.Directory)
}

func TestBuildWrapsInvokerFailure(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	invokerErr := errors.New("sam exited with code 1")
	invoker := &fakeBuildInvoker{err: invokerErr}
	stage := NewBuildStage(testutil.NewLogForTesting(t.Name()), invoker)

	_, err := stage.Build(ctx, "/work/template.yaml")
	require.ErrorIs(t, err, ErrBuildFailed)
	require.ErrorIs(t, err, invokerErr)
}

func TestSamCliInvokerCommandLine(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	executor := testutil.NewTestProcessExecutor(ctx)
	executor.InstallAutoExecution(testutil.AutoExecution{
		Condition: testutil.ProcessSearchCriteria{Command: []string{"sam", "build"}},
		RunCommand: func(pe *testutil.ProcessExecution) int32 {
			return 0
		},
	})

	invoker := NewSamCliInvoker(testutil.NewLogForTesting(t.Name()), executor)

	err := invoker.Build(ctx, BuildOptions{
		TemplatePath:         "/work/template.yaml",
		EnvironmentVariables: map[string]string{"SAM_BUILD_MODE": "debug"},
		OutputDirectory:      "/work/.aws-sam/build",
	})
	require.NoError(t, err)

	executions := executor.FindAll([]string{"sam", "build"}, "", nil)
	require.Len(t, executions, 1)

	cmd := executions[0].Cmd
	require.Equal(t, []string{
		"sam", "build",
		"--template", "/work/template.yaml",
		"--build-dir", "/work/.aws-sam/build",
	}, cmd.Args)
	require.Equal(t, "/work", cmd.Dir)
	require.Contains(t, cmd.Env, "SAM_BUILD_MODE=debug")
}

func TestSamCliInvokerNonZeroExit(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	executor := testutil.NewTestProcessExecutor(ctx)
	executor.InstallAutoExecution(testutil.AutoExecution{
		Condition: testutil.ProcessSearchCriteria{Command: []string{"sam", "build"}},
		RunCommand: func(pe *testutil.ProcessExecution) int32 {
			return 1
		},
	})

	invoker := NewSamCliInvoker(testutil.NewLogForTesting(t.Name()), executor)

	err := invoker.Build(ctx, BuildOptions{TemplatePath: "/work/template.yaml"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "exited with code 1")
}
