// Package install builds the application binary and copies it to, or removes
// it from, the system install path.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/config"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/fileutil"
)

var (
	ErrBuildFailed    = errors.New("build failed")
	ErrBinaryNotFound = errors.New("built binary not found")
	ErrCopyFailed     = errors.New("failed to install binary")
	ErrRemoveFailed   = errors.New("failed to remove binary")
)

// Installer installs and uninstalls the project binary.
type Installer struct {
	project *config.Project
	dir     string
	dryRun  bool

	out        io.Writer
	log        *slog.Logger
	builder    exec.CommandRunner
	privileged exec.CommandRunner
}

// Opt is a functional option for configuring an Installer.
type Opt func(*Installer)

// WithLogger sets the logger. By default, slog.Default() is used.
func WithLogger(log *slog.Logger) Opt {
	return func(i *Installer) {
		i.log = log
	}
}

// WithOutput sets where status lines are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Opt {
	return func(i *Installer) {
		i.out = w
	}
}

// WithProjectDir sets the directory swift build runs in. Defaults to the working directory.
func WithProjectDir(dir string) Opt {
	return func(i *Installer) {
		i.dir = dir
	}
}

// WithBuildRunner sets the runner swift build is invoked with.
func WithBuildRunner(runner exec.CommandRunner) Opt {
	return func(i *Installer) {
		i.builder = runner
	}
}

// WithPrivilegedRunner sets the runner used for cp, chmod and rm on the install path.
func WithPrivilegedRunner(runner exec.CommandRunner) Opt {
	return func(i *Installer) {
		i.privileged = runner
	}
}

// DryRun logs the commands instead of running them.
func DryRun() Opt {
	return func(i *Installer) {
		i.dryRun = true
	}
}

// New creates an Installer for the given project.
func New(project *config.Project, opts ...Opt) *Installer {
	i := &Installer{
		project: project,
		out:     os.Stdout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}

	if i.dryRun {
		dry := exec.NewDryRunner(i.log)
		if i.builder == nil {
			i.builder = dry
		}
		if i.privileged == nil {
			i.privileged = dry
		}
	}
	if i.builder == nil {
		i.builder = exec.NewDefaultCommandRunner(exec.WithDir(i.dir), exec.WithLogger(i.log), exec.WithOutput(i.out))
	}
	if i.privileged == nil {
		i.privileged = exec.Elevated(exec.WithLogger(i.log))
	}
	return i
}

// Install builds the binary and copies it to the install path.
func (i *Installer) Install(ctx context.Context) error {
	p := i.project
	fmt.Fprintf(i.out, "Building %s (%s)...\n", p.SwiftProduct, p.BuildConfiguration)
	if _, err := i.builder.RunCommand(ctx, "swift", "build", "-c", p.BuildConfiguration, "--product", p.SwiftProduct); err != nil {
		fmt.Fprintln(i.out, "✗ Build failed")
		return trace.Wrap(errors.Join(ErrBuildFailed, err))
	}

	binary := filepath.Join(i.dir, p.BuildOutput())
	ok, err := fileutil.IsFile(binary)
	if err != nil {
		return trace.Wrap(err)
	}
	if !ok && !i.dryRun {
		fmt.Fprintf(i.out, "✗ Binary not found at %s\n", binary)
		return trace.Wrap(fmt.Errorf("%w: %s", ErrBinaryNotFound, binary))
	}

	fmt.Fprintf(i.out, "Installing to %s...\n", p.InstallPath)
	if _, err := i.privileged.RunCommand(ctx, "cp", binary, p.InstallPath); err != nil {
		fmt.Fprintf(i.out, "✗ Failed to install %s\n", p.BinaryName)
		return trace.Wrap(errors.Join(ErrCopyFailed, err))
	}
	if _, err := i.privileged.RunCommand(ctx, "chmod", "755", p.InstallPath); err != nil {
		fmt.Fprintf(i.out, "✗ Failed to install %s\n", p.BinaryName)
		return trace.Wrap(errors.Join(ErrCopyFailed, err))
	}

	fmt.Fprintf(i.out, "✓ %s installed to %s\n", p.BinaryName, p.InstallPath)
	return nil
}

// Uninstall removes the installed binary. A missing binary is not an error
// and no command is run in that case.
func (i *Installer) Uninstall(ctx context.Context) error {
	p := i.project
	if !fileutil.Exists(p.InstallPath) {
		fmt.Fprintf(i.out, "✓ %s not installed\n", p.BinaryName)
		return nil
	}

	fmt.Fprintf(i.out, "Removing %s...\n", p.InstallPath)
	if _, err := i.privileged.RunCommand(ctx, "rm", p.InstallPath); err != nil {
		fmt.Fprintf(i.out, "✗ Failed to remove %s\n", p.BinaryName)
		return trace.Wrap(errors.Join(ErrRemoveFailed, err))
	}

	fmt.Fprintf(i.out, "✓ %s uninstalled successfully\n", p.BinaryName)
	return nil
}
