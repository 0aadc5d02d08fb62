package main

import (
	"fmt"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exitcode"
	"github.com/SacrilegeWasTaken/olovebar-tools/packaging/diskimage"
	"github.com/SacrilegeWasTaken/olovebar-tools/packaging/packageinstaller"
)

// DMGCmd wraps an app bundle into a disk image.
type DMGCmd struct {
	App    string `required:"" help:"Path to the .app bundle."`
	Output string `required:"" help:"Output path of the disk image. The extension is forced to .dmg."`

	Notarize bool `help:"Sign and notarize the disk image."`
}

func (c *DMGCmd) Run(cli *CLI) error {
	opts := []diskimage.Opt{diskimage.WithLogger(cli.log)}
	if cli.DryRun {
		opts = append(opts, diskimage.WithCommandRunner(exec.NewDryRunner(cli.log)))
	}
	if c.Notarize {
		tool, err := cli.notaryTool()
		if err != nil {
			return trace.Wrap(err)
		}
		opts = append(opts, diskimage.WithNotaryTool(tool))
	}

	pkg, err := diskimage.NewPackager(diskimage.Info{AppPath: c.App, OutputPath: c.Output}, opts...)
	if err != nil {
		return exitcode.Wrap(exitcode.Failure, err)
	}
	out, err := pkg.Package(cli.ctx)
	if err != nil {
		return exitcode.Wrap(exitcode.Failure, err)
	}

	fmt.Fprintf(cli.stdout, "Successfully created %s\n", out)
	return nil
}

// PkgCmd builds a package installer that puts the binary at the install path.
type PkgCmd struct {
	Binary string `arg:"" help:"Binary to package."`
	Output string `arg:"" help:"Output path of the package installer."`

	InstallPath string `help:"Where the binary is installed. Defaults to the configured install_path."`
	ScriptsDir  string `help:"Path to the scripts directory. Contains preinstall and postinstall scripts."`
	Version     string `help:"Version of the package. Used in determining upgrade behavior."`
	Sign        bool   `help:"Sign and notarize the package."`
}

func (c *PkgCmd) Run(cli *CLI) error {
	opts := []packageinstaller.Opt{packageinstaller.WithLogger(cli.log)}
	if cli.DryRun {
		opts = append(opts, packageinstaller.DryRun())
	}
	if c.Sign {
		tool, err := cli.notaryTool()
		if err != nil {
			return trace.Wrap(err)
		}
		opts = append(opts, packageinstaller.WithNotaryTool(tool))
	}

	pkg, err := packageinstaller.NewPackager(packageinstaller.Info{
		Binary:      c.Binary,
		InstallPath: or(c.InstallPath, cli.project.InstallPath),
		BundleID:    cli.project.BundleID,
		OutputPath:  c.Output,
		ScriptsDir:  c.ScriptsDir,
		Version:     c.Version,
	}, opts...)
	if err != nil {
		return trace.Wrap(err)
	}
	out, err := pkg.Package(cli.ctx)
	if err != nil {
		return trace.Wrap(err)
	}

	fmt.Fprintf(cli.stdout, "Successfully created %s\n", out)
	return nil
}

// NotarizeCmd signs and notarizes standalone binaries.
type NotarizeCmd struct {
	Files []string `arg:"" help:"List of files to notarize."`
}

func (c *NotarizeCmd) Run(cli *CLI) error {
	tool, err := cli.notaryTool()
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(tool.NotarizeBinaries(cli.ctx, c.Files))
}
