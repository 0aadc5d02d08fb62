package setup

import (
	"context"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
)

func swVers(ctx context.Context, runner exec.CommandRunner) (string, error) {
	out, err := runner.RunCommand(ctx, "sw_vers", "-productVersion")
	if err != nil {
		return "", trace.Wrap(err)
	}
	return out, nil
}
