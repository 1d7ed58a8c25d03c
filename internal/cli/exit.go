package cli

import (
	"errors"

	"github.com/kubev2v/vsan-health/internal/service"
	"github.com/kubev2v/vsan-health/internal/vsphere"
)

const (
	ExitOK = iota
	ExitGeneric
	ExitAuthentication
	ExitNotFound
	ExitUnsupported
	ExitTimeout
)

// ExitCode maps the error of a command to the process exit status. A produced report
// exits 0 whatever its severity.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		authErr        *vsphere.ErrAuthentication
		notFoundErr    *vsphere.ErrNotFound
		unsupportedErr *vsphere.ErrCapabilityUnsupported
		timeoutErr     *service.ErrTimeout
	)
	switch {
	case errors.As(err, &timeoutErr):
		return ExitTimeout
	case errors.As(err, &authErr):
		return ExitAuthentication
	case errors.As(err, &notFoundErr):
		return ExitNotFound
	case errors.As(err, &unsupportedErr):
		return ExitUnsupported
	default:
		return ExitGeneric
	}
}
