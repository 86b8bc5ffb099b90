package debug

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/go-logr/logr"

	"github.com/lambda-tools/samdbg/pkg/process"
)

const (
	buildModeEnvVar = "SAM_BUILD_MODE"
	buildModeDebug  = "debug"
)

// BuildOptions is the contract with the external build tool invoker.
type BuildOptions struct {
	TemplatePath         string
	EnvironmentVariables map[string]string
	UseContainer         bool
	OutputDirectory      string
}

// BuildInvoker runs the external build tool. Only exit status is consumed.
type BuildInvoker interface {
	Build(ctx context.Context, options BuildOptions) error
}

// SamCliInvoker invokes the "sam" CLI as an external process.
type SamCliInvoker struct {
	log      logr.Logger
	executor process.Executor
}

func NewSamCliInvoker(log logr.Logger, executor process.Executor) *SamCliInvoker {
	return &SamCliInvoker{
		log:      log,
		executor: executor,
	}
}

func (s *SamCliInvoker) Build(ctx context.Context, options BuildOptions) error {
	args := []string{"build", "--template", options.TemplatePath}
	if options.OutputDirectory != "" {
		args = append(args, "--build-dir", options.OutputDirectory)
	}
	if options.UseContainer {
		args = append(args, "--use-container")
	}

	cmd := exec.Command("sam", args...)
	cmd.Dir = filepath.Dir(options.TemplatePath)
	cmd.Env = append(os.Environ(), sortedEnv(options.EnvironmentVariables)...)

	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf

	pic := make(chan process.ProcessExitInfo, 1)
	peh := process.NewChannelProcessExitHandler(pic)

	s.log.V(1).Info("Running build command", "Command", cmd.String())
	_, startWaitForProcessExit, err := s.executor.StartProcess(ctx, cmd, peh)
	if err != nil {
		return fmt.Errorf("failed to start build command: %w", err)
	}
	startWaitForProcessExit()

	exitInfo := <-pic
	if exitInfo.Err != nil {
		return exitInfo.Err
	}
	if exitInfo.ExitCode != 0 {
		return fmt.Errorf("build command exited with code %d: %s", exitInfo.ExitCode, errBuf.String())
	}
	return nil
}

// BuildStage produces the function's deployable artifact, instrumented for debugging.
type BuildStage struct {
	log     logr.Logger
	invoker BuildInvoker
}

func NewBuildStage(log logr.Logger, invoker BuildInvoker) *BuildStage {
	return &BuildStage{
		log:     log,
		invoker: invoker,
	}
}

// Build invokes the external build tool against templatePath.
// The debug-mode environment override is always set so the emitted artifact is
// unoptimized and steppable. The build runs on the host, not in a container
// sandbox: this is a local interactive debug loop and speed wins over
// build-environment fidelity.
func (b *BuildStage) Build(ctx context.Context, templatePath string) (BuildArtifact, error) {
	outputDir := filepath.Join(filepath.Dir(templatePath), ".aws-sam", "build")

	err := b.invoker.Build(ctx, BuildOptions{
		TemplatePath: templatePath,
		EnvironmentVariables: map[string]string{
			buildModeEnvVar: buildModeDebug,
		},
		UseContainer:    false,
		OutputDirectory: outputDir,
	})
	if err != nil {
		return BuildArtifact{}, errors.Join(ErrBuildFailed, err)
	}

	b.log.V(1).Info("Build completed", "ArtifactDirectory", outputDir)
	return BuildArtifact{Directory: outputDir}, nil
}

func sortedEnv(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for name, value := range vars {
		env = append(env, fmt.Sprintf("%s=%s", name, value))
	}
	sort.Strings(env)
	return env
}

var _ BuildInvoker = (*SamCliInvoker)(nil)
