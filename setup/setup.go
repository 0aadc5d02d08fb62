// Package setup checks the host for the tools needed to build and run
// OLoveBar and installs the missing ones.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	osexec "os/exec"
	"strconv"
	"strings"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/config"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
)

var (
	// ErrUnsupportedOS is returned when macOS is older than the minimum major version.
	ErrUnsupportedOS = errors.New("unsupported macOS version")
	// ErrManualStepRequired is returned when an installer needs the user to finish it.
	// The check should be run again afterwards.
	ErrManualStepRequired = errors.New("manual installation step required")
)

const homebrewInstallScript = "https://raw.githubusercontent.com/Homebrew/install/HEAD/install.sh"

// dependency is an external tool looked up on PATH.
type dependency struct {
	name    string
	command string
	// advice is printed when the tool is missing and cannot be installed for the user.
	advice []string
	// installMsg and install describe how to install a missing tool.
	installMsg string
	install    []string
	// manual marks installers that only start an interactive installation.
	manual     bool
	manualNote string
}

var dependencies = []dependency{
	{
		name:    "Aerospace",
		command: "aerospace",
		advice: []string{
			"   Install from: https://github.com/nikitabobko/AeroSpace",
			"   Don't forget to configure and run it on startup!",
			"   Aerospace must be running before olovebar!",
		},
	},
	{
		name:       "Homebrew",
		command:    "brew",
		installMsg: "Installing Homebrew...",
		// The outer shell expands the downloaded script into the inner bash -c.
		install: []string{"/bin/bash", "-c", fmt.Sprintf(`/bin/bash -c "$(curl -fsSL %s)"`, homebrewInstallScript)},
	},
	{
		name:       "Swift",
		command:    "swift",
		installMsg: "Installing Xcode Command Line Tools (includes Swift)...",
		install:    []string{"xcode-select", "--install"},
		manual:     true,
		manualNote: "Please complete the installation dialog and run this script again.",
	},
	{
		name:       "uv",
		command:    "uv",
		installMsg: "Installing uv...",
		install:    []string{"brew", "install", "uv"},
	},
}

// Checker verifies the macOS version and the development dependencies.
type Checker struct {
	minMajor int

	out      io.Writer
	log      *slog.Logger
	runner   exec.CommandRunner
	lookPath func(string) (string, error)
	version  func(context.Context) (string, error)
	dryRun   bool
}

// Opt is a functional option for configuring a Checker.
type Opt func(*Checker)

// WithLogger sets the logger. By default, slog.Default() is used.
func WithLogger(log *slog.Logger) Opt {
	return func(c *Checker) {
		c.log = log
	}
}

// WithOutput sets where status lines are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Opt {
	return func(c *Checker) {
		c.out = w
	}
}

// WithCommandRunner sets the runner installers are invoked with.
func WithCommandRunner(runner exec.CommandRunner) Opt {
	return func(c *Checker) {
		c.runner = runner
	}
}

// WithLookPath replaces exec.LookPath.
func WithLookPath(lookPath func(string) (string, error)) Opt {
	return func(c *Checker) {
		c.lookPath = lookPath
	}
}

// WithVersionProbe replaces the macOS product version lookup.
func WithVersionProbe(probe func(context.Context) (string, error)) Opt {
	return func(c *Checker) {
		c.version = probe
	}
}

// DryRun logs the install commands instead of running them.
func DryRun() Opt {
	return func(c *Checker) {
		c.dryRun = true
	}
}

// NewChecker creates a Checker for the given project.
func NewChecker(project *config.Project, opts ...Opt) *Checker {
	c := &Checker{
		minMajor: project.MinMacOSMajor,
		out:      os.Stdout,
		log:      slog.Default(),
		lookPath: osexec.LookPath,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.runner == nil {
		if c.dryRun {
			c.runner = exec.NewDryRunner(c.log)
		} else {
			c.runner = exec.NewDefaultCommandRunner(exec.WithLogger(c.log), exec.WithOutput(c.out), exec.WithStdin(os.Stdin))
		}
	}
	if c.version == nil {
		c.version = func(ctx context.Context) (string, error) {
			return productVersion(ctx, exec.NewDefaultCommandRunner(exec.WithLogger(c.log)))
		}
	}
	return c
}

// Check verifies the macOS version, then every dependency in order.
// It stops at the first dependency that cannot be installed automatically.
func (c *Checker) Check(ctx context.Context) error {
	if err := c.CheckOS(ctx); err != nil {
		return trace.Wrap(err)
	}
	for _, dep := range dependencies {
		if err := c.checkDependency(ctx, dep); err != nil {
			return trace.Wrap(err)
		}
	}
	fmt.Fprintln(c.out, "\n✓ All dependencies installed")
	return nil
}

// CheckOS returns ErrUnsupportedOS if macOS is older than the minimum major version.
func (c *Checker) CheckOS(ctx context.Context) error {
	version, err := c.version(ctx)
	if err != nil {
		return trace.Wrap(err, "failed to determine macOS version")
	}
	major, err := majorVersion(version)
	if err != nil {
		return trace.Wrap(err)
	}
	if major < c.minMajor {
		fmt.Fprintf(c.out, "✗ macOS %s detected. macOS %d+ required.\n", version, c.minMajor)
		return trace.Wrap(fmt.Errorf("%w: %s", ErrUnsupportedOS, version))
	}
	fmt.Fprintf(c.out, "✓ macOS %s\n", version)
	return nil
}

func (c *Checker) checkDependency(ctx context.Context, dep dependency) error {
	if _, err := c.lookPath(dep.command); err == nil {
		fmt.Fprintf(c.out, "✓ %s found\n", dep.name)
		return nil
	}

	if len(dep.install) == 0 {
		fmt.Fprintf(c.out, "⚠️  %s not found\n", dep.name)
		for _, line := range dep.advice {
			fmt.Fprintln(c.out, line)
		}
		return nil
	}

	fmt.Fprintf(c.out, "✗ %s not found\n", dep.name)
	fmt.Fprintln(c.out, dep.installMsg)
	_, err := c.runner.RunCommand(ctx, dep.install[0], dep.install[1:]...)

	if dep.manual {
		if err != nil {
			// xcode-select exits non-zero when the tools are already being installed.
			c.log.DebugContext(ctx, "installer exited with an error", "command", dep.command, "error", err)
		}
		fmt.Fprintln(c.out, dep.manualNote)
		return trace.Wrap(ErrManualStepRequired)
	}
	if err != nil {
		return trace.Wrap(err, "failed to install %s", dep.name)
	}
	fmt.Fprintf(c.out, "✓ %s installed\n", dep.name)
	return nil
}

func majorVersion(version string) (int, error) {
	major, _, _ := strings.Cut(strings.TrimSpace(version), ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0, trace.BadParameter("invalid macOS version %q", version)
	}
	return n, nil
}
