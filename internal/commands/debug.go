package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lambda-tools/samdbg/internal/containers"
	"github.com/lambda-tools/samdbg/internal/debug"
	"github.com/lambda-tools/samdbg/internal/host"
	"github.com/lambda-tools/samdbg/pkg/logger"
	"github.com/lambda-tools/samdbg/pkg/process"
)

const defaultDebugPort = 5858

func NewDebugCommand(log *logger.Logger) *cobra.Command {
	var (
		templatePath     string
		handlerName      string
		port             int
		workspaceRoot    string
		waitForContainer bool
		emitLaunchConfig bool
		adapterArgs      []string
	)

	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Builds, provisions and attaches a debugger to a function",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workspaceRoot == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("could not determine workspace root: %w", err)
				}
				workspaceRoot = cwd
			}

			executor := process.NewOSExecutor(log.Logger)
			containerClient := containers.NewCliClient(log.Logger, executor)

			if status := containerClient.CheckStatus(cmd.Context()); !status.Running {
				return fmt.Errorf("%w: %s", containers.ErrRuntimeUnavailable, status.Error)
			}

			collaborators := debug.Collaborators{
				Executor:   executor,
				Containers: containerClient,
			}

			if waitForContainer {
				collaborators.Probe = debug.NewContainerPortProbe(log.Logger, containerClient, port)
			}

			if emitLaunchConfig {
				collaborators.Starter = host.NewLaunchConfigWriter(log.Logger)
			} else if len(adapterArgs) > 0 {
				collaborators.Starter = host.NewAdapterSessionStarter(log.Logger, executor, host.AdapterConfig{Args: adapterArgs})
			}

			orchestrator := debug.NewOrchestrator(log.Logger, collaborators)

			return orchestrator.Run(cmd.Context(), debug.DebugRequest{
				TemplatePath:  templatePath,
				HandlerName:   handlerName,
				Port:          port,
				WorkspaceRoot: workspaceRoot,
			})
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "template.yaml", "Path to the SAM deployment template")
	cmd.Flags().StringVar(&handlerName, "handler", "", "Handler identifying the function to debug")
	cmd.Flags().IntVarP(&port, "port", "p", defaultDebugPort, "Host port the function container publishes for debugging")
	cmd.Flags().StringVar(&workspaceRoot, "workspace", "", "Workspace root for the debug session (defaults to the current directory)")
	cmd.Flags().BoolVar(&waitForContainer, "wait-for-container", false, "Wait until a container publishes the debug port before attaching")
	cmd.Flags().BoolVar(&emitLaunchConfig, "emit-launch-config", false, "Write the attach configuration to .vscode/launch.json instead of starting an adapter")
	cmd.Flags().StringSliceVar(&adapterArgs, "adapter", nil, "Debug adapter command and arguments (defaults to 'netcoredbg,--interpreter=vscode')")

	_ = cmd.MarkFlagRequired("handler")

	return cmd
}
