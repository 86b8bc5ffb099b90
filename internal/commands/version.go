package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/lambda-tools/samdbg/internal/version"
)

// If set, the value of this variable is written to the log as one of the first messages.
const loggingContextEnvVar = "SAMDBG_LOGGING_CONTEXT"

func NewVersionCommand(log logr.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			versionStr, err := versionString()
			if err != nil {
				log.Error(err, "Could not serialize version information")
				return err
			}
			fmt.Println(versionStr)
			return nil
		},
	}
}

// LogVersion emits program startup information at verbose level.
func LogVersion(log logr.Logger, programStartMsg string) func(_ *cobra.Command, _ []string) {
	return func(_ *cobra.Command, _ []string) {
		versionStr, err := versionString()
		if err != nil {
			versionStr = fmt.Sprintf("unknown: %v", err)
		}

		launchPath, pathErr := os.Executable()
		if pathErr != nil {
			launchPath = os.Args[0]
		}

		log.V(1).Info(programStartMsg,
			"PID", os.Getpid(),
			"Exe", launchPath,
			"Args", os.Args[1:],
			"Version", versionStr,
		)

		if logContext, found := os.LookupEnv(loggingContextEnvVar); found && logContext != "" {
			log.V(1).Info(logContext)
		}
	}
}

func versionString() (string, error) {
	serialized, err := json.Marshal(version.Version())
	if err != nil {
		return "", err
	}
	return string(serialized), nil
}
