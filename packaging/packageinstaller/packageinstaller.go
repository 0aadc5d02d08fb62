package packageinstaller

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/fileutil"
	"github.com/SacrilegeWasTaken/olovebar-tools/notarize"
)

// Packager creates a package installer (.pkg) for distribution.
type Packager struct {
	Info Info

	log        *slog.Logger
	notaryTool *notarize.Tool
	cmdRunner  exec.CommandRunner
	dryRun     bool
}

// Info represents a package installer to be packaged for distribution.
type Info struct {
	// Binary is the executable placed into the package.
	Binary string
	// InstallPath is where the binary ends up on the target machine.
	// 		Example: /usr/local/bin/olovebar
	InstallPath string
	// BundleID is a unique identifier for the package installer.
	// This is typically in reverse domain notation.
	// 		Example: com.sacrilege.olovebar
	BundleID string
	// OutputPath is desired output path of the package installer.
	OutputPath string

	// Optional fields
	// ScriptsDir is the path to the scripts directory.
	ScriptsDir string
	// Version is the version of the package.
	Version string
}

// Opt is a functional option for configuring a Packager.
type Opt func(*Packager)

var defaultOpts = []Opt{
	WithLogger(slog.Default()),
}

// NewPackager creates a new package installer Packager.
func NewPackager(info Info, opts ...Opt) (*Packager, error) {
	if err := info.validate(); err != nil {
		return nil, trace.Wrap(err)
	}
	pkg := &Packager{
		Info: info,
	}
	for _, opt := range defaultOpts {
		opt(pkg)
	}
	for _, opt := range opts {
		opt(pkg)
	}

	if pkg.cmdRunner == nil {
		var runner exec.CommandRunner = exec.NewDefaultCommandRunner(exec.WithLogger(pkg.log))
		if pkg.dryRun {
			runner = exec.NewDryRunner(pkg.log)
		}
		pkg.cmdRunner = runner
	}
	return pkg, nil
}

// Package creates the package installer and returns its path.
func (p *Packager) Package(ctx context.Context) (string, error) {
	tmpdir, err := os.MkdirTemp("", "packageinstaller-*")
	if err != nil {
		return "", trace.Wrap(err, "failed to create temp dir")
	}
	defer os.RemoveAll(tmpdir)

	root := filepath.Join(tmpdir, "root")
	if err := os.Mkdir(root, 0o755); err != nil {
		return "", trace.Wrap(err)
	}
	binDest := filepath.Join(root, filepath.Base(p.Info.InstallPath))
	if err := fileutil.CopyFile(p.Info.Binary, binDest, fileutil.WithDestPermissions(0o755)); err != nil {
		return "", trace.Wrap(err, "failed to stage binary")
	}

	if err := os.MkdirAll(filepath.Dir(p.Info.OutputPath), 0o755); err != nil {
		return "", trace.Wrap(err)
	}

	// productsign cannot sign in place, so the unsigned package is built
	// next to the scratch files when it is going to be signed.
	unsigned := p.Info.OutputPath
	if p.notaryTool != nil {
		unsigned = filepath.Join(tmpdir, "unsigned-"+filepath.Base(p.Info.OutputPath))
	}

	// The root holds a single flat file. pkgbuild only relocates bundles, so
	// no component plist is needed to pin the install location.
	args := []string{
		"--root", root,
		"--install-location", filepath.Dir(p.Info.InstallPath),
	}
	if p.Info.BundleID != "" {
		args = append(args, "--identifier", p.Info.BundleID)
	}
	if p.Info.ScriptsDir != "" {
		args = append(args, "--scripts", p.Info.ScriptsDir)
	}
	if p.Info.Version != "" {
		args = append(args, "--version", p.Info.Version)
	}
	args = append(args, unsigned)

	p.log.InfoContext(ctx, "building package installer...")
	if _, err := p.cmdRunner.RunCommand(ctx, "pkgbuild", args...); err != nil {
		return "", trace.Wrap(err, "failed to create package installer")
	}

	if p.notaryTool != nil {
		if err := p.notaryTool.NotarizePackageInstaller(ctx, unsigned, p.Info.OutputPath); err != nil {
			return "", trace.Wrap(err)
		}
	}

	p.log.InfoContext(ctx, "successfully created package installer", "path", p.Info.OutputPath)
	return p.Info.OutputPath, nil
}

func (i *Info) validate() error {
	if i.Binary == "" {
		return trace.BadParameter("binary is required")
	}
	ok, err := fileutil.IsFile(i.Binary)
	if err != nil {
		return trace.Wrap(err)
	}
	if !ok {
		return trace.NotFound("binary %q not found", i.Binary)
	}
	if i.OutputPath == "" {
		return trace.BadParameter("output path is required")
	}
	if i.BundleID == "" {
		return trace.BadParameter("bundle ID is required")
	}
	if !filepath.IsAbs(i.InstallPath) {
		return trace.BadParameter("install path must be absolute, got %q", i.InstallPath)
	}
	return nil
}

// WithLogger sets the logger for the packager.
// By default, the packager will use slog.Default().
func WithLogger(log *slog.Logger) Opt {
	return func(a *Packager) {
		a.log = log
	}
}

// WithNotaryTool sets the notary tool for the packager.
func WithNotaryTool(tool *notarize.Tool) Opt {
	return func(a *Packager) {
		a.notaryTool = tool
	}
}

// WithCommandRunner sets the runner used for pkgbuild.
func WithCommandRunner(runner exec.CommandRunner) Opt {
	return func(a *Packager) {
		a.cmdRunner = runner
	}
}

// DryRun sets the packager to dry run mode.
// In dry run mode, the packager will not execute commands and will not actually create the package installer.
func DryRun() Opt {
	return func(a *Packager) {
		a.dryRun = true
	}
}
