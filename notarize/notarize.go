package notarize

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/fileutil"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/zipper"
)

// Tool is a wrapper around the MacOS codesigning/notarizing utilities.
type Tool struct {
	Creds Creds

	retry  int
	dryRun bool

	log       *slog.Logger
	cmdRunner exec.CommandRunner
}

// Creds contains the credentials needed to codesign and notarize.
type Creds struct {
	// KeychainProfile is the notarytool profile stored with "notarytool store-credentials".
	KeychainProfile string
	// SigningIdentity is the identity used to sign, typically "Developer ID Application: ...".
	SigningIdentity string
	// TeamID is the unique identifier for the Apple Developer account.
	TeamID string
}

// Opt is a functional option for configuring a Tool.
type Opt func(*Tool) error

// MaxRetries sets how many times a failed submission is retried.
func MaxRetries(retry int) Opt {
	return func(t *Tool) error {
		if retry < 0 {
			return trace.BadParameter("retry must be non-negative, got %d", retry)
		}
		t.retry = retry
		return nil
	}
}

// WithLogger sets the logger for the tool.
func WithLogger(log *slog.Logger) Opt {
	return func(t *Tool) error {
		t.log = log
		return nil
	}
}

// WithCommandRunner replaces the runner used for codesign and xcrun.
func WithCommandRunner(runner exec.CommandRunner) Opt {
	return func(t *Tool) error {
		t.cmdRunner = runner
		return nil
	}
}

// DryRun only logs the commands that would have been run.
func DryRun() Opt {
	return func(t *Tool) error {
		t.dryRun = true
		return nil
	}
}

// NewTool creates a new notary Tool. Credentials are only required outside of dry run mode.
func NewTool(creds Creds, opts ...Opt) (*Tool, error) {
	t := &Tool{
		Creds: creds,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, trace.Wrap(err)
		}
	}

	if t.cmdRunner == nil {
		if t.dryRun {
			t.cmdRunner = exec.NewDryRunner(t.log)
		} else {
			t.cmdRunner = exec.NewDefaultCommandRunner(exec.WithLogger(t.log))
		}
	}

	if !t.dryRun {
		if err := creds.validate(); err != nil {
			return nil, trace.Wrap(err)
		}
	}
	return t, nil
}

func (c Creds) validate() error {
	if c.KeychainProfile == "" {
		return trace.BadParameter("keychain profile is required")
	}
	if c.SigningIdentity == "" {
		return trace.BadParameter("signing identity is required")
	}
	if c.TeamID == "" {
		return trace.BadParameter("team ID is required")
	}
	return nil
}

// AppBundleOpts contains optional settings for signing an app bundle.
type AppBundleOpts struct {
	// Entitlements is the path to the entitlements file.
	Entitlements string
	// BundleID is passed to codesign as the identifier.
	BundleID string
}

// NotarizeAppBundle codesigns, notarizes and staples the app bundle at appBundlePath.
func (t *Tool) NotarizeAppBundle(ctx context.Context, appBundlePath string, opts AppBundleOpts) error {
	args := []string{
		"--sign", t.Creds.SigningIdentity,
		"--force",
		"--verbose",
		"--timestamp",
		"--options", "kill,hard,runtime",
	}
	if opts.BundleID != "" {
		args = append(args, "--identifier", opts.BundleID)
	}
	if opts.Entitlements != "" {
		args = append(args, "--entitlements", opts.Entitlements)
	}
	args = append(args, appBundlePath)

	out, err := t.cmdRunner.RunCommand(ctx, "codesign", args...)
	if err != nil {
		return trace.Wrap(err, "failed to codesign app bundle")
	}
	t.log.InfoContext(ctx, "codesign output", "output", out)

	// App bundles are submitted as a zip that includes the .app directory.
	notaryFile, err := os.CreateTemp("", "notarize-app-bundle-*.zip")
	if err != nil {
		return trace.Wrap(err)
	}
	defer os.Remove(notaryFile.Name())

	zipErr := zipper.ZipDir(appBundlePath, notaryFile, zipper.IncludeParent())
	if err := trace.NewAggregate(zipErr, notaryFile.Close()); err != nil {
		return trace.Wrap(err, "failed to zip app bundle")
	}

	if err := t.SubmitAndWait(ctx, notaryFile.Name()); err != nil {
		return trace.Wrap(err)
	}

	return trace.Wrap(t.staple(ctx, appBundlePath))
}

// NotarizeBinaries codesigns and notarizes standalone binaries.
// Stapling is not supported for binaries.
func (t *Tool) NotarizeBinaries(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return trace.BadParameter("no files to notarize")
	}

	args := []string{
		"--sign", t.Creds.SigningIdentity,
		"--force",
		"--verbose",
		"--timestamp",
		"--options", "runtime",
	}
	args = append(args, files...)
	out, err := t.cmdRunner.RunCommand(ctx, "codesign", args...)
	if err != nil {
		return trace.Wrap(err, "failed to codesign binaries")
	}
	t.log.InfoContext(ctx, "codesign output", "output", out)

	tmpdir, err := os.MkdirTemp("", "notarize-binaries-*")
	if err != nil {
		return trace.Wrap(err)
	}
	defer os.RemoveAll(tmpdir)

	bundleDir := filepath.Join(tmpdir, "binaries")
	if err := os.Mkdir(bundleDir, 0o755); err != nil {
		return trace.Wrap(err)
	}
	for _, f := range files {
		if err := fileutil.CopyFile(f, filepath.Join(bundleDir, filepath.Base(f))); err != nil {
			return trace.Wrap(err)
		}
	}

	zipPath := filepath.Join(tmpdir, "binaries.zip")
	zipFile, err := os.Create(zipPath)
	if err != nil {
		return trace.Wrap(err)
	}
	zipErr := zipper.ZipDir(bundleDir, zipFile)
	if err := trace.NewAggregate(zipErr, zipFile.Close()); err != nil {
		return trace.Wrap(err, "failed to zip binaries")
	}

	return trace.Wrap(t.SubmitAndWait(ctx, zipPath))
}

// NotarizeDiskImage codesigns, notarizes and staples a disk image (.dmg).
func (t *Tool) NotarizeDiskImage(ctx context.Context, dmgPath string) error {
	out, err := t.cmdRunner.RunCommand(ctx, "codesign", "--sign", t.Creds.SigningIdentity, "--timestamp", dmgPath)
	if err != nil {
		return trace.Wrap(err, "failed to codesign disk image")
	}
	t.log.InfoContext(ctx, "codesign output", "output", out)

	if err := t.SubmitAndWait(ctx, dmgPath); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(t.staple(ctx, dmgPath))
}

// NotarizePackageInstaller will notarize a given package installer (.pkg).
// Signing the package installer creates a new file for the signed package.
func (t *Tool) NotarizePackageInstaller(ctx context.Context, pathToUnsigned, pathToSigned string) error {
	out, err := t.cmdRunner.RunCommand(ctx, "productsign",
		"--sign", t.Creds.SigningIdentity,
		"--timestamp",
		pathToUnsigned,
		pathToSigned,
	)
	if err != nil {
		return trace.Wrap(err, "failed to productsign package")
	}
	t.log.InfoContext(ctx, "productsign output", "output", out)

	if err := t.SubmitAndWait(ctx, pathToSigned); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(t.staple(ctx, pathToSigned))
}

func (t *Tool) staple(ctx context.Context, path string) error {
	out, err := t.cmdRunner.RunCommand(ctx, "xcrun", "stapler", "staple", path)
	if err != nil {
		return trace.Wrap(err, "failed to staple %q", path)
	}
	t.log.InfoContext(ctx, "stapler output", "output", out)
	return nil
}
