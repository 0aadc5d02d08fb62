package icon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strconv"

	"github.com/gravitational/trace"
	"golang.org/x/sync/errgroup"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/fileutil"
)

const (
	// IconSetDir is the scratch directory iconutil compiles from.
	IconSetDir = "AppIcon.iconset"
	// ContainerName is the compiled icon resource.
	ContainerName = "AppIcon.icns"
	// LogoName is the flat copy of the source image used by the status bar item.
	LogoName = "logo.png"

	defaultConcurrency = 4
)

// Size is a single entry of an icon set.
type Size struct {
	Pixels int
	Name   string
}

// Sizes is the fixed table of images iconutil expects in an iconset.
var Sizes = []Size{
	{16, "icon_16x16.png"},
	{32, "icon_16x16@2x.png"},
	{32, "icon_32x32.png"},
	{64, "icon_32x32@2x.png"},
	{128, "icon_128x128.png"},
	{256, "icon_128x128@2x.png"},
	{256, "icon_256x256.png"},
	{512, "icon_256x256@2x.png"},
	{512, "icon_512x512.png"},
	{1024, "icon_512x512@2x.png"},
}

// Failure records a size that could not be produced.
type Failure struct {
	Size Size
	Err  error
}

// Report describes the outcome of a Generate call.
type Report struct {
	// Skipped is set when the source image does not exist.
	Skipped bool
	// Generated lists the iconset entries that were produced, in table order.
	Generated []string
	// Failures lists the entries that could not be produced, in table order.
	Failures []Failure
	// Container is the path of the compiled .icns, empty if compilation failed.
	Container string
	// ContainerErr is set when iconutil failed.
	ContainerErr error
	// Logo is the path of the flat logo copy.
	Logo string
}

// Err aggregates every failure recorded in the report.
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	errs := make([]error, 0, len(r.Failures)+1)
	for _, f := range r.Failures {
		errs = append(errs, trace.Wrap(f.Err, "resizing %s", f.Size.Name))
	}
	if r.ContainerErr != nil {
		errs = append(errs, r.ContainerErr)
	}
	return trace.NewAggregate(errs...)
}

// Resizer writes a square copy of src scaled to pixels at dst.
type Resizer interface {
	Resize(ctx context.Context, src, dst string, pixels int) error
}

// SipsResizer resizes images with the macOS sips tool.
type SipsResizer struct {
	Runner exec.CommandRunner
}

func (s *SipsResizer) Resize(ctx context.Context, src, dst string, pixels int) error {
	n := strconv.Itoa(pixels)
	_, err := s.Runner.RunCommand(ctx, "sips", "-z", n, n, src, "--out", dst)
	return trace.Wrap(err)
}

// Generator produces an icon container and logo copy from a single source image.
type Generator struct {
	log         *slog.Logger
	cmdRunner   exec.CommandRunner
	resizer     Resizer
	concurrency int
	dryRun      bool
}

// Opt is a functional option for configuring a Generator.
type Opt func(*Generator)

// WithLogger sets the logger for the generator.
// By default, the generator will use slog.Default().
func WithLogger(log *slog.Logger) Opt {
	return func(g *Generator) {
		g.log = log
	}
}

// WithCommandRunner sets the runner used for sips and iconutil.
func WithCommandRunner(runner exec.CommandRunner) Opt {
	return func(g *Generator) {
		g.cmdRunner = runner
	}
}

// WithResizer overrides the resizer. By default sips is used when it is on
// PATH and the pure Go resizer otherwise.
func WithResizer(resizer Resizer) Opt {
	return func(g *Generator) {
		g.resizer = resizer
	}
}

// WithConcurrency limits how many sizes are resized at once.
func WithConcurrency(n int) Opt {
	return func(g *Generator) {
		g.concurrency = n
	}
}

// DryRun logs external commands instead of running them. Sizes are still
// rendered with the pure Go resizer so the iconset is complete.
func DryRun() Opt {
	return func(g *Generator) {
		g.dryRun = true
	}
}

var lookPath = osexec.LookPath

// NewGenerator creates a new icon Generator.
func NewGenerator(opts ...Opt) *Generator {
	g := &Generator{
		log:         slog.Default(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.cmdRunner == nil {
		if g.dryRun {
			g.cmdRunner = exec.NewDryRunner(g.log)
		} else {
			g.cmdRunner = exec.NewDefaultCommandRunner(exec.WithLogger(g.log))
		}
	}
	if g.resizer == nil {
		// A dry-run sips writes nothing.
		if g.dryRun {
			g.resizer = &ImageResizer{}
		} else if _, err := lookPath("sips"); err == nil {
			g.resizer = &SipsResizer{Runner: g.cmdRunner}
		} else {
			g.log.Debug("sips not found, using built-in resizer")
			g.resizer = &ImageResizer{}
		}
	}
	if g.concurrency < 1 {
		g.concurrency = 1
	}
	return g
}

// Generate writes AppIcon.icns and logo.png into resourcesDir.
// Individual resize failures and an iconutil failure are recorded in the
// report but are not returned as errors. A missing source is skipped with a warning.
func (g *Generator) Generate(ctx context.Context, source, resourcesDir string) (*Report, error) {
	report := &Report{}

	ok, err := fileutil.IsFile(source)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !ok {
		g.log.WarnContext(ctx, "icon source not found, skipping icon generation", "source", source)
		report.Skipped = true
		return report, nil
	}

	g.log.InfoContext(ctx, "generating icon", "source", source, "container", ContainerName)

	iconset := filepath.Join(resourcesDir, IconSetDir)
	if err := os.RemoveAll(iconset); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := os.MkdirAll(iconset, 0o755); err != nil {
		return nil, trace.Wrap(err)
	}
	defer func() {
		if err := os.RemoveAll(iconset); err != nil {
			g.log.WarnContext(ctx, "failed to remove iconset", "path", iconset, "error", err)
		}
	}()

	g.resizeAll(ctx, source, iconset, report)

	container := filepath.Join(resourcesDir, ContainerName)
	if len(report.Generated) == 0 {
		report.ContainerErr = trace.NotFound("no icon sizes were generated, skipping %s", ContainerName)
	} else if _, err := g.cmdRunner.RunCommand(ctx, "iconutil", "-c", "icns", iconset, "-o", container); err != nil {
		report.ContainerErr = trace.Wrap(err, "failed to compile %s", ContainerName)
	} else {
		report.Container = container
	}
	if report.ContainerErr != nil {
		g.log.WarnContext(ctx, "icon container not created", "error", report.ContainerErr)
	}

	logo := filepath.Join(resourcesDir, LogoName)
	if err := fileutil.CopyFile(source, logo); err != nil {
		return report, trace.Wrap(err, "failed to copy logo")
	}
	report.Logo = logo

	return report, nil
}

func (g *Generator) resizeAll(ctx context.Context, source, iconset string, report *Report) {
	errs := make([]error, len(Sizes))

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, size := range Sizes {
		eg.Go(func() error {
			dst := filepath.Join(iconset, size.Name)
			errs[i] = g.resizer.Resize(ctx, source, dst, size.Pixels)
			if errs[i] == nil && !fileutil.Exists(dst) {
				errs[i] = trace.NotFound("resizer reported success but %s was not written", size.Name)
			}
			return nil
		})
	}
	_ = eg.Wait() // resize errors are collected per size

	for i, size := range Sizes {
		if errs[i] != nil {
			g.log.WarnContext(ctx, "failed to resize icon", "size", fmt.Sprintf("%dx%d", size.Pixels, size.Pixels), "name", size.Name, "error", errs[i])
			report.Failures = append(report.Failures, Failure{Size: size, Err: errs[i]})
			continue
		}
		report.Generated = append(report.Generated, size.Name)
	}
}
