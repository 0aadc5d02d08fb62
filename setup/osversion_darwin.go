//go:build darwin

package setup

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
)

// productVersion returns the macOS product version, e.g. "26.0.1".
func productVersion(ctx context.Context, runner exec.CommandRunner) (string, error) {
	if v, err := unix.Sysctl("kern.osproductversion"); err == nil && v != "" {
		return v, nil
	}
	return swVers(ctx, runner)
}
