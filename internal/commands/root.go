package commands

import (
	"github.com/spf13/cobra"

	"github.com/lambda-tools/samdbg/pkg/logger"
)

var (
	rootCmdLogger *logger.Logger
)

func NewRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "samdbg",
		Short: "Debugs serverless functions inside their local execution containers",
		Long: `samdbg builds a serverless function in debug mode, provisions the remote
debugger into the function's execution container, and attaches an IDE
debugger to the running process.`,
		SilenceUsage: true,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			rootCmdLogger.Flush()
		},
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	rootCmdLogger = logger.New("samdbg")
	rootCmdLogger.AddLevelFlag(rootCmd.PersistentFlags())
	rootCmd.PersistentPreRun = LogVersion(rootCmdLogger.Logger, "samdbg starting")

	rootCmd.AddCommand(NewDebugCommand(rootCmdLogger))
	rootCmd.AddCommand(NewVersionCommand(rootCmdLogger.Logger))

	return rootCmd, nil
}
