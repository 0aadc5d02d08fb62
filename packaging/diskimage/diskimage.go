package diskimage

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/fileutil"
	"github.com/SacrilegeWasTaken/olovebar-tools/notarize"
)

const (
	// StagingDirName is the scratch directory created next to the output.
	StagingDirName = "temp_dmg"
	// ApplicationsLink is the drag-and-drop shortcut placed beside the bundle.
	ApplicationsLink = "Applications"
	applicationsDir  = "/Applications"

	// Compressed, read-only image.
	format = "UDZO"
)

// Packager creates a disk image (.dmg) containing an app bundle.
type Packager struct {
	Info Info

	log        *slog.Logger
	cmdRunner  exec.CommandRunner
	notaryTool *notarize.Tool
}

// Info contains the information needed to create a disk image.
type Info struct {
	// AppPath is the app bundle to put in the image.
	AppPath string
	// OutputPath is the desired image path. The extension is forced to .dmg.
	OutputPath string
	// VolumeName defaults to the output file name without extension.
	VolumeName string
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

// WithCommandRunner sets the runner hdiutil is invoked with.
func WithCommandRunner(runner exec.CommandRunner) Opt {
	return func(p *Packager) {
		p.cmdRunner = runner
	}
}

// WithNotaryTool signs and notarizes the image once it is created.
func WithNotaryTool(tool *notarize.Tool) Opt {
	return func(p *Packager) {
		p.notaryTool = tool
	}
}

// NewPackager creates a new disk image Packager.
func NewPackager(info Info, opts ...Opt) (*Packager, error) {
	if info.AppPath == "" {
		return nil, trace.BadParameter("app path is required")
	}
	if info.OutputPath == "" {
		return nil, trace.BadParameter("output path is required")
	}
	info.OutputPath = NormalizeOutputPath(info.OutputPath)
	switch filepath.Base(info.OutputPath) {
	case ".dmg", "..dmg":
		return nil, trace.BadParameter("output path %q does not name a file", info.OutputPath)
	}
	if info.VolumeName == "" {
		info.VolumeName = strings.TrimSuffix(filepath.Base(info.OutputPath), ".dmg")
	}

	p := &Packager{
		Info: info,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cmdRunner == nil {
		p.cmdRunner = exec.NewDefaultCommandRunner(exec.WithLogger(p.log))
	}
	return p, nil
}

// NormalizeOutputPath replaces the extension of path with .dmg. A trailing
// separator is dropped, so "dist/" becomes "dist.dmg", and a leading dot of
// the file name is not an extension.
func NormalizeOutputPath(path string) string {
	path = filepath.Clean(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == base {
		ext = ""
	}
	if ext == ".dmg" {
		return path
	}
	return strings.TrimSuffix(path, ext) + ".dmg"
}

// Package creates the disk image and returns its path.
// The staging directory is removed whether or not hdiutil succeeds.
func (p *Packager) Package(ctx context.Context) (string, error) {
	if _, err := os.Stat(p.Info.AppPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", trace.NotFound("app bundle %q not found", p.Info.AppPath)
		}
		return "", trace.Wrap(err)
	}

	output := p.Info.OutputPath
	outDir := filepath.Dir(output)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", trace.Wrap(err)
	}

	if fileutil.Exists(output) {
		if err := os.Remove(output); err != nil {
			return "", trace.Wrap(err, "failed to remove old disk image")
		}
		p.log.InfoContext(ctx, "removed old disk image", "path", output)
	}

	staging := filepath.Join(outDir, StagingDirName)
	if err := os.RemoveAll(staging); err != nil {
		return "", trace.Wrap(err)
	}
	if err := os.Mkdir(staging, 0o755); err != nil {
		return "", trace.Wrap(err, "failed to create staging directory")
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			p.log.WarnContext(ctx, "failed to remove staging directory", "path", staging, "error", err)
		}
	}()

	appName := filepath.Base(filepath.Clean(p.Info.AppPath))
	if err := fileutil.CopyDir(p.Info.AppPath, filepath.Join(staging, appName)); err != nil {
		return "", trace.Wrap(err, "failed to copy %s to staging directory", appName)
	}
	p.log.InfoContext(ctx, "copied app to staging directory", "app", appName)

	if err := os.Symlink(applicationsDir, filepath.Join(staging, ApplicationsLink)); err != nil {
		return "", trace.Wrap(err, "failed to create Applications symlink")
	}

	p.log.InfoContext(ctx, "creating disk image", "path", output, "volume", p.Info.VolumeName)
	_, err := p.cmdRunner.RunCommand(ctx, "hdiutil", "create",
		"-volname", p.Info.VolumeName,
		"-srcfolder", staging,
		"-ov",
		"-format", format,
		output,
	)
	if err != nil {
		return "", trace.Wrap(err, "failed to create disk image")
	}

	if p.notaryTool != nil {
		if err := p.notaryTool.NotarizeDiskImage(ctx, output); err != nil {
			// A failed run leaves no image behind.
			if rmErr := os.Remove(output); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				err = trace.NewAggregate(err, trace.Wrap(rmErr, "failed to remove disk image"))
			}
			return "", trace.Wrap(err)
		}
	}

	p.log.InfoContext(ctx, "successfully created disk image", "path", output)
	return output, nil
}
