package debug

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-logr/logr"

	"github.com/lambda-tools/samdbg/internal/containers"
	"github.com/lambda-tools/samdbg/pkg/osutil"
)

// ContainerClient is the slice of the container runtime surface the
// provisioner needs: one-shot container execution with exit-code capture.
type ContainerClient interface {
	RunOneShot(ctx context.Context, options containers.OneShotOptions) (int32, error)
}

// DebuggerProvisioner installs the remote debugger binary into the function's
// code directory by running a throwaway container derived from the function's
// runtime image.
type DebuggerProvisioner struct {
	log    logr.Logger
	client ContainerClient
}

func NewDebuggerProvisioner(log logr.Logger, client ContainerClient) *DebuggerProvisioner {
	return &DebuggerProvisioner{
		log:    log,
		client: client,
	}
}

// EnsureDebuggerInstalled provisions the debugger under codeUri, skipping all
// work if the install directory already exists. A failed provisioning attempt
// is not retried here; the caller may retry the whole debug request and this
// check avoids duplicate downloads if a prior attempt succeeded.
//
// The check-then-provision sequence is not atomic: concurrent requests against
// the same codeUri can launch duplicate provisioning containers. Correctness
// relies on the idempotent check, not on mutual exclusion.
func (p *DebuggerProvisioner) EnsureDebuggerInstalled(ctx context.Context, codeUri string, runtime string) error {
	installDir := DebuggerInstallDir(codeUri)

	// A failed stat means "not installed"; ErrNotExist is the expected steady
	// state here and not worth surfacing.
	if _, statErr := os.Stat(installDir); statErr == nil {
		p.log.V(1).Info("Debugger already provisioned", "Path", installDir)
		return nil
	}

	if mkErr := os.Mkdir(installDir, osutil.PermissionOnlyOwnerReadWriteSetCurrent); mkErr != nil {
		// Lost a race with another provisioning attempt; the directory being
		// there is all the Provision step needs.
		if !errors.Is(mkErr, fs.ErrExist) {
			return errors.Join(ErrProvisioningFailed, mkErr)
		}
	}

	image := provisionImage(runtime)
	p.log.Info("Provisioning debugger", "Image", image, "InstallDir", installDir)

	var errBuf bytes.Buffer
	exitCode, runErr := p.client.RunOneShot(ctx, containers.OneShotOptions{
		Image:      image,
		Entrypoint: "bash",
		Command:    []string{"-c", debuggerInstallScript},
		Mounts: []containers.BindMount{
			{Source: installDir, Target: provisionMountTarget},
		},
		StdErrStream: &errBuf,
	})
	if runErr != nil {
		return &ProvisioningError{ExitCode: exitCode, cause: runErr}
	}
	if exitCode != 0 {
		return &ProvisioningError{
			ExitCode: exitCode,
			cause:    fmt.Errorf("install command failed: %s", errBuf.String()),
		}
	}

	p.log.Info("Debugger provisioned", "InstallDir", installDir)
	return nil
}
