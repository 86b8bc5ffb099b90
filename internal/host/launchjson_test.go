package host

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lambda-tools/samdbg/pkg/testutil"
)

func TestLaunchConfigWriter(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	workspaceRoot := t.TempDir()
	writer := NewLaunchConfigWriter(testutil.NewLogForTesting(t.Name()))

	config := sessionConfigForTesting()
	require.NoError(t, writer.StartSession(ctx, config, workspaceRoot))

	data, err := os.ReadFile(filepath.Join(workspaceRoot, ".vscode", "launch.json"))
	require.NoError(t, err)

	var parsed struct {
		Version        string               `json:"version"`
		Configurations []DebugSessionConfig `json:"configurations"`
	}
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Equal(t, "0.2.0", parsed.Version)
	require.Len(t, parsed.Configurations, 1)
	require.Equal(t, config, parsed.Configurations[0])
}

func TestLaunchConfigWriterOverwritesExistingFile(t *testing.T) {
	ctx, cancel := testutil.GetTestContext(t, 30*time.Second)
	defer cancel()

	workspaceRoot := t.TempDir()
	vscodeDir := filepath.Join(workspaceRoot, ".vscode")
	require.NoError(t, os.Mkdir(vscodeDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(vscodeDir, "launch.json"), []byte("stale"), 0644))

	writer := NewLaunchConfigWriter(testutil.NewLogForTesting(t.Name()))
	require.NoError(t, writer.StartSession(ctx, sessionConfigForTesting(), workspaceRoot))

	data, err := os.ReadFile(filepath.Join(vscodeDir, "launch.json"))
	require.NoError(t, err)
	require.NotContains(t, string(data), "stale")
	require.Contains(t, string(data), ".NET Core Docker Attach: HelloWorld")
}
