package host

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/lambda-tools/samdbg/pkg/osutil"
)

const launchConfigVersion = "0.2.0"

// LaunchConfigWriter "starts" a session by writing the attach configuration
// into <workspaceRoot>/.vscode/launch.json, for IDEs that attach manually.
type LaunchConfigWriter struct {
	log logr.Logger
}

func NewLaunchConfigWriter(log logr.Logger) *LaunchConfigWriter {
	return &LaunchConfigWriter{log: log}
}

type launchFile struct {
	Version        string               `json:"version"`
	Configurations []DebugSessionConfig `json:"configurations"`
}

func (w *LaunchConfigWriter) StartSession(_ context.Context, config DebugSessionConfig, workspaceRoot string) error {
	vscodeDir := filepath.Join(workspaceRoot, ".vscode")
	if err := os.MkdirAll(vscodeDir, osutil.PermissionOnlyOwnerReadWriteSetCurrent); err != nil {
		return fmt.Errorf("could not create '%s': %w", vscodeDir, err)
	}

	data, err := json.MarshalIndent(launchFile{
		Version:        launchConfigVersion,
		Configurations: []DebugSessionConfig{config},
	}, "", "    ")
	if err != nil {
		return fmt.Errorf("could not serialize launch configuration: %w", err)
	}

	launchPath := filepath.Join(vscodeDir, "launch.json")
	if err := os.WriteFile(launchPath, osutil.WithNewline(data), osutil.PermissionOwnerReadWriteOthersRead); err != nil {
		return fmt.Errorf("could not write '%s': %w", launchPath, err)
	}

	w.log.Info("Wrote launch configuration", "path", launchPath)
	return nil
}

var _ SessionStarter = (*LaunchConfigWriter)(nil)
