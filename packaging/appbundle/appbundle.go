package appbundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/fileutil"
	"github.com/SacrilegeWasTaken/olovebar-tools/notarize"
	"github.com/SacrilegeWasTaken/olovebar-tools/packaging/icon"
)

// PkgInfo is the legacy type/creator code of an application bundle.
const PkgInfo = "APPL????"

// ErrExecutableNotFound is returned when the executable to bundle does not exist.
var ErrExecutableNotFound = errors.New("executable not found")

// Packager creates an app bundle (.app) for distribution.
type Packager struct {
	Info Info

	log        *slog.Logger
	out        io.Writer
	notaryTool *notarize.Tool
	iconGen    IconGenerator
}

// Info contains the information needed to create an app bundle.
type Info struct {
	// Executable is the binary to use as the main executable for the app bundle.
	Executable string
	// OutputPath is the .app directory to create. An existing one is replaced.
	OutputPath string
	// AppName is the name of the executable inside Contents/MacOS.
	AppName string
	// BundleID is accepted for signing and the generated Info.plist.
	// It is not checked against a copied Info.plist.
	BundleID string
	// InfoPlist is the descriptor copied to Contents/Info.plist if it exists.
	InfoPlist string
	// Logo is the source image for the icon set. Icons are skipped if it does not exist.
	Logo string

	// Optional fields
	// GenerateInfoPlist renders a minimal Info.plist when InfoPlist does not exist.
	GenerateInfoPlist bool
	// Version is used by the generated Info.plist.
	Version string
	// Entitlements file used when signing.
	Entitlements string
}

// IconGenerator builds the icon resources of a bundle.
type IconGenerator interface {
	Generate(ctx context.Context, source, resourcesDir string) (*icon.Report, error)
}

// Opt is a functional option for configuring a Packager.
type Opt func(*Packager)

// WithLogger sets the logger for the packager.
// By default, the packager will use slog.Default().
func WithLogger(log *slog.Logger) Opt {
	return func(p *Packager) {
		p.log = log
	}
}

// WithOutput sets where user-facing warnings are printed. Defaults to os.Stdout.
func WithOutput(w io.Writer) Opt {
	return func(p *Packager) {
		p.out = w
	}
}

// WithNotaryTool signs and notarizes the bundle once it is assembled.
func WithNotaryTool(tool *notarize.Tool) Opt {
	return func(p *Packager) {
		p.notaryTool = tool
	}
}

// WithIconGenerator sets the icon generator.
func WithIconGenerator(gen IconGenerator) Opt {
	return func(p *Packager) {
		p.iconGen = gen
	}
}

// NewPackager creates a new Packager.
func NewPackager(info Info, opts ...Opt) (*Packager, error) {
	if err := info.validate(); err != nil {
		return nil, trace.Wrap(err)
	}

	p := &Packager{
		Info: info,
		log:  slog.Default(),
		out:  os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.iconGen == nil {
		p.iconGen = icon.NewGenerator(icon.WithLogger(p.log))
	}
	return p, nil
}

// Package assembles the bundle in a staging directory next to OutputPath and
// moves it into place once every step succeeded. On failure an existing bundle
// at OutputPath is left untouched.
func (p *Packager) Package(ctx context.Context) (err error) {
	output := filepath.Clean(p.Info.OutputPath)
	parent := filepath.Dir(output)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return trace.Wrap(err)
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(output)+".staging-*")
	if err != nil {
		return trace.Wrap(err, "failed to create staging directory")
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				err = trace.NewAggregate(err, trace.Wrap(rmErr, "failed to remove staging directory"))
			}
		}
	}()

	p.log.InfoContext(ctx, "assembling app bundle", "executable", p.Info.Executable, "bundle_id", p.Info.BundleID)
	if err := p.assemble(ctx, staging); err != nil {
		return trace.Wrap(err)
	}

	if err := replace(staging, output); err != nil {
		return trace.Wrap(err)
	}
	p.log.InfoContext(ctx, "created app bundle", "path", output)

	if p.notaryTool == nil {
		p.log.DebugContext(ctx, "notarization skipped")
		return nil
	}

	// Signing happens in place so the signature covers the final bundle name.
	if err := p.notaryTool.NotarizeAppBundle(ctx, output, notarize.AppBundleOpts{
		Entitlements: p.Info.Entitlements,
		BundleID:     p.Info.BundleID,
	}); err != nil {
		return trace.Wrap(err, "bundle was created at %q but notarization failed", output)
	}
	p.log.InfoContext(ctx, "notarized app bundle", "path", output)
	return nil
}

func (p *Packager) assemble(ctx context.Context, root string) error {
	// MkdirTemp creates the directory with 0700.
	if err := os.Chmod(root, 0o755); err != nil {
		return trace.Wrap(err)
	}

	contents := filepath.Join(root, "Contents")
	macosDir := filepath.Join(contents, "MacOS")
	resourcesDir := filepath.Join(contents, "Resources")
	for _, dir := range []string{macosDir, resourcesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return trace.Wrap(err)
		}
	}

	binDest := filepath.Join(macosDir, p.Info.AppName)
	if err := fileutil.CopyFile(p.Info.Executable, binDest, fileutil.WithDestPermissions(0o755)); err != nil {
		return trace.Wrap(err, "failed to copy executable")
	}

	if err := p.writeInfoPlist(ctx, filepath.Join(contents, "Info.plist")); err != nil {
		return trace.Wrap(err)
	}

	hasLogo, err := fileutil.IsFile(p.Info.Logo)
	if err != nil {
		return trace.Wrap(err)
	}
	if hasLogo {
		if _, err := p.iconGen.Generate(ctx, p.Info.Logo, resourcesDir); err != nil {
			return trace.Wrap(err, "failed to generate icons")
		}
	} else {
		p.log.DebugContext(ctx, "logo not found, skipping icons", "logo", p.Info.Logo)
	}

	if err := os.WriteFile(filepath.Join(contents, "PkgInfo"), []byte(PkgInfo), 0o644); err != nil {
		return trace.Wrap(err, "failed to write PkgInfo")
	}
	return nil
}

func (p *Packager) writeInfoPlist(ctx context.Context, dest string) error {
	ok, err := fileutil.IsFile(p.Info.InfoPlist)
	if err != nil {
		return trace.Wrap(err)
	}
	if ok {
		return trace.Wrap(fileutil.CopyFile(p.Info.InfoPlist, dest, fileutil.WithDestPermissions(0o644)), "failed to copy Info.plist")
	}

	if !p.Info.GenerateInfoPlist {
		fmt.Fprintf(p.out, "Warning: Info.plist not found at %s\n", p.Info.InfoPlist)
		p.log.DebugContext(ctx, "bundle will have no descriptor", "path", p.Info.InfoPlist)
		return nil
	}

	hasIcon, err := fileutil.IsFile(p.Info.Logo)
	if err != nil {
		return trace.Wrap(err)
	}
	p.log.InfoContext(ctx, "Info.plist not found, generating one", "path", p.Info.InfoPlist)
	content := renderInfoPlist(plistValues{
		AppName:  p.Info.AppName,
		BundleID: p.Info.BundleID,
		Version:  p.Info.Version,
		HasIcon:  hasIcon,
	})
	return trace.Wrap(os.WriteFile(dest, []byte(content), 0o644), "failed to write Info.plist")
}

// replace swaps staging into output, removing whatever was at output.
func replace(staging, output string) error {
	if err := os.RemoveAll(output); err != nil {
		return trace.Wrap(err, "failed to remove existing bundle %q", output)
	}
	if err := os.Rename(staging, output); err != nil {
		return trace.Wrap(err, "failed to move bundle into place")
	}
	return nil
}

func (i *Info) validate() error {
	if i.OutputPath == "" {
		return trace.BadParameter("output path is required")
	}
	if i.AppName == "" {
		i.AppName = trimExt(filepath.Base(i.OutputPath))
	}

	if i.Executable == "" {
		return trace.Wrap(ErrExecutableNotFound)
	}
	info, err := os.Stat(i.Executable)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return trace.Wrap(fmt.Errorf("%w: %s", ErrExecutableNotFound, i.Executable))
		}
		return trace.Wrap(err, "stat executable %q", i.Executable)
	}
	if info.IsDir() {
		return trace.BadParameter("executable %q must be a file", i.Executable)
	}
	return nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
