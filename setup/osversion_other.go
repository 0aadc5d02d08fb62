//go:build !darwin

package setup

import (
	"context"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
)

func productVersion(ctx context.Context, runner exec.CommandRunner) (string, error) {
	return swVers(ctx, runner)
}
