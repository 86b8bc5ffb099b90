package debug

import (
	"errors"
	"fmt"
)

var (
	// ErrBuildFailed indicates the external build tool invocation failed.
	ErrBuildFailed = errors.New("function build failed")

	// ErrProvisioningFailed indicates the debugger could not be installed into
	// the function's code directory.
	ErrProvisioningFailed = errors.New("debugger provisioning failed")
)

// ProvisioningError carries the provisioning container's exit code for diagnosis.
// errors.Is(err, ErrProvisioningFailed) reports true for it.
type ProvisioningError struct {
	ExitCode int32
	cause    error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%v (exit code %d): %v", ErrProvisioningFailed, e.ExitCode, e.cause)
}

func (e *ProvisioningError) Unwrap() []error {
	return []error{ErrProvisioningFailed, e.cause}
}
