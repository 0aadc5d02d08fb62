package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kingpin/v2"

	"github.com/SacrilegeWasTaken/olovebar-tools/install"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/config"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exitcode"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/logging"
	"github.com/SacrilegeWasTaken/olovebar-tools/setup"
)

const EnvVarPrefix = "OLOVEBAR_"

// cli holds the process streams and the options injected into the commands.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	installerOpts []install.Opt
	checkerOpts   []setup.Opt
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	c := &cli{stdout: os.Stdout, stderr: os.Stderr}
	code := c.run(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

func (c *cli) run(ctx context.Context, args []string) int {
	app := kingpin.New("olovebar-setup", "Install OLoveBar and check its development dependencies.")
	app.HelpFlag.Short('h')
	app.UsageWriter(c.stdout)
	app.ErrorWriter(c.stderr)
	// Help is printed by kingpin, but Parse still returns the selected command.
	var helped bool
	app.Terminate(func(int) { helped = true })

	var (
		configFile string
		debug      bool
		dryRun     bool
		projectDir string
	)
	app.Flag("config", "Project config file. Defaults are used when it does not exist.").
		Short('c').
		Envar(EnvVarPrefix + "CONFIG").
		Default(config.DefaultFile).
		StringVar(&configFile)
	app.Flag("debug", "Enable debug logging.").BoolVar(&debug)
	app.Flag("dry-run", "Log commands instead of running them.").Short('d').BoolVar(&dryRun)

	installCmd := app.Command("install", "Build the binary and install it to the install path.")
	installCmd.Flag("project-dir", "Directory of the Swift package.").Default(".").StringVar(&projectDir)
	uninstallCmd := app.Command("uninstall", "Remove the installed binary.")
	checkCmd := app.Command("check", "Check the macOS version and install missing dependencies.")

	cmd, err := app.Parse(args)
	if helped {
		return exitcode.OK
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "olovebar-setup: error: %v\n", err)
		return exitcode.Usage
	}

	project, err := config.LoadOrDefault(configFile)
	if err != nil {
		fmt.Fprintf(c.stderr, "olovebar-setup: error: %v\n", err)
		return exitcode.Failure
	}
	log := logging.New(c.stderr, debug)
	ctx = logging.ToCtx(ctx, log)

	switch cmd {
	case installCmd.FullCommand():
		opts := append([]install.Opt{
			install.WithLogger(log),
			install.WithOutput(c.stdout),
			install.WithProjectDir(projectDir),
		}, c.installerOpts...)
		if dryRun {
			opts = append(opts, install.DryRun())
		}
		err = install.New(project, opts...).Install(ctx)
	case uninstallCmd.FullCommand():
		opts := append([]install.Opt{
			install.WithLogger(log),
			install.WithOutput(c.stdout),
		}, c.installerOpts...)
		if dryRun {
			opts = append(opts, install.DryRun())
		}
		err = install.New(project, opts...).Uninstall(ctx)
	case checkCmd.FullCommand():
		err = c.check(ctx, project, dryRun)
	}

	if err != nil {
		logging.FromCtx(ctx).DebugContext(ctx, "command failed", "command", cmd, "error", err)
		fmt.Fprintf(c.stderr, "olovebar-setup: error: %v\n", err)
		return exitcode.From(err)
	}
	return exitcode.OK
}

func (c *cli) check(ctx context.Context, project *config.Project, dryRun bool) error {
	opts := append([]setup.Opt{
		setup.WithLogger(logging.FromCtx(ctx)),
		setup.WithOutput(c.stdout),
	}, c.checkerOpts...)
	if dryRun {
		opts = append(opts, setup.DryRun())
	}

	err := setup.NewChecker(project, opts...).Check(ctx)
	if errors.Is(err, setup.ErrManualStepRequired) {
		// The user finishes the installer and runs check again.
		return nil
	}
	return err
}
