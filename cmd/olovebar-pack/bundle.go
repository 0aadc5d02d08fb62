package main

import (
	"errors"
	"fmt"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exitcode"
	"github.com/SacrilegeWasTaken/olovebar-tools/packaging/appbundle"
	"github.com/SacrilegeWasTaken/olovebar-tools/packaging/icon"
)

// BundleCmd creates the .app bundle from a compiled executable.
type BundleCmd struct {
	Executable string `arg:"" help:"Compiled executable to use as the main executable of the bundle."`
	Output     string `arg:"" help:"Path of the .app bundle to create. An existing bundle is replaced."`
	BundleID   string `arg:"" optional:"" help:"Bundle identifier. Defaults to the configured bundle_id."`

	InfoPlist         string `help:"Info.plist to copy into the bundle. Defaults to the configured info_plist."`
	Logo              string `help:"Source image for the app icon. Defaults to the configured logo."`
	AppName           string `help:"Name of the executable inside Contents/MacOS. Defaults to the configured app_name."`
	GenerateInfoPlist bool   `help:"Generate a minimal Info.plist when none exists."`
	Version           string `help:"Version written to a generated Info.plist."`
	Entitlements      string `help:"Entitlements file used when signing."`
	Sign              bool   `help:"Sign and notarize the bundle."`
}

func (c *BundleCmd) Run(cli *CLI) error {
	p := cli.project
	info := appbundle.Info{
		Executable:        c.Executable,
		OutputPath:        c.Output,
		AppName:           or(c.AppName, p.AppName),
		BundleID:          or(c.BundleID, p.BundleID),
		InfoPlist:         or(c.InfoPlist, p.InfoPlist),
		Logo:              or(c.Logo, p.Logo),
		GenerateInfoPlist: c.GenerateInfoPlist,
		Version:           c.Version,
		Entitlements:      c.Entitlements,
	}

	opts := []appbundle.Opt{
		appbundle.WithLogger(cli.log),
		appbundle.WithOutput(cli.stdout),
		appbundle.WithIconGenerator(newIconGenerator(cli)),
	}
	if c.Sign {
		tool, err := cli.notaryTool()
		if err != nil {
			return trace.Wrap(err)
		}
		opts = append(opts, appbundle.WithNotaryTool(tool))
	}

	pkg, err := appbundle.NewPackager(info, opts...)
	if err != nil {
		if errors.Is(err, appbundle.ErrExecutableNotFound) {
			return exitcode.Wrap(exitcode.Usage, err)
		}
		return trace.Wrap(err)
	}
	if err := pkg.Package(cli.ctx); err != nil {
		return trace.Wrap(err)
	}

	fmt.Fprintf(cli.stdout, "✅ Created app bundle at %s\n", c.Output)
	return nil
}

// IconCmd generates the icon resources on their own.
type IconCmd struct {
	Source       string `arg:"" help:"Source image."`
	ResourcesDir string `arg:"" help:"Directory to write AppIcon.icns and logo.png to."`

	Strict bool `help:"Fail when any icon size could not be produced."`
}

func (c *IconCmd) Run(cli *CLI) error {
	report, err := newIconGenerator(cli).Generate(cli.ctx, c.Source, c.ResourcesDir)
	if err != nil {
		return trace.Wrap(err)
	}
	if report.Skipped {
		fmt.Fprintf(cli.stdout, "Icon source not found: %s\n", c.Source)
		return nil
	}

	for _, f := range report.Failures {
		fmt.Fprintf(cli.stdout, "✗ %s: %v\n", f.Size.Name, f.Err)
	}
	if report.Container != "" {
		fmt.Fprintf(cli.stdout, "✓ %s\n", report.Container)
	}
	if c.Strict {
		return trace.Wrap(report.Err())
	}
	return nil
}

func newIconGenerator(cli *CLI) *icon.Generator {
	opts := []icon.Opt{icon.WithLogger(cli.log)}
	if cli.DryRun {
		opts = append(opts, icon.DryRun())
	}
	return icon.NewGenerator(opts...)
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
