package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/config"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exitcode"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/logging"
	"github.com/SacrilegeWasTaken/olovebar-tools/notarize"
)

const envPrefix = "OLOVEBAR_"

// CLI is the root kong struct of olovebar-pack.
type CLI struct {
	Bundle   BundleCmd   `cmd:"" help:"Create an application bundle (.app)."`
	Icon     IconCmd     `cmd:"" help:"Generate AppIcon.icns and logo.png from a source image."`
	DMG      DMGCmd      `cmd:"" name:"dmg" help:"Create a disk image (.dmg) from an application bundle."`
	Pkg      PkgCmd      `cmd:"" help:"Create a package installer (.pkg) for the command line binary."`
	Notarize NotarizeCmd `cmd:"" help:"Sign and notarize files."`
	Cask     CaskCmd     `cmd:"" help:"Pin the version and sha256 of the Homebrew cask."`
	Release  ReleaseCmd  `cmd:"" help:"Upload release assets to GitHub."`
	Schema   SchemaCmd   `cmd:"" help:"Print the JSON schema of the config file."`

	GlobalFlags
}

// GlobalFlags are shared by every command.
type GlobalFlags struct {
	Config string `short:"c" type:"path" env:"${envPrefix}CONFIG" default:"${defaultConfig}" help:"Project config file. Defaults are used when it does not exist."`
	DryRun bool   `short:"d" help:"Log external commands instead of running them."`
	Debug  bool   `help:"Enable debug logging."`

	// Retry is the number of times to retry notarization in case of failure.
	Retry int `group:"Notarization Optional Flags" help:"Retry notarization in case of failure."`

	KeychainProfile string `group:"Notarization Required Flags" env:"${envPrefix}KEYCHAIN_PROFILE" help:"Keychain profile to use for notarization. Use \"man notarytool\" for authentication options."`
	SigningID       string `group:"Notarization Required Flags" env:"${envPrefix}SIGNING_ID" help:"Signing Identity to use for codesigning."`
	TeamID          string `group:"Notarization Required Flags" env:"${envPrefix}TEAM_ID" help:"Team ID is the unique identifier for the Apple Developer account."`

	ctx     context.Context
	log     *slog.Logger
	stdout  io.Writer
	project *config.Project
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run parses args, runs the selected command and returns the exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("olovebar-pack"),
		kong.Description("Package, sign and publish OLoveBar."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"envPrefix":     envPrefix,
			"defaultConfig": config.DefaultFile,
		},
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		fmt.Fprintf(stderr, "olovebar-pack: %v\n", err)
		return exitcode.Failure
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "olovebar-pack: error: %v\n", err)
		return exitcode.Usage
	}

	cli.ctx = ctx
	cli.stdout = stdout
	cli.log = logging.New(stderr, cli.Debug)
	cli.project, err = config.LoadOrDefault(cli.Config)
	if err != nil {
		fmt.Fprintf(stderr, "olovebar-pack: error: %v\n", err)
		return exitcode.Failure
	}

	if err := kctx.Run(); err != nil {
		fmt.Fprintf(stderr, "olovebar-pack: error: %v\n", err)
		return exitcode.From(err)
	}
	return exitcode.OK
}

// notaryTool builds the notary tool from the notarization flags.
func (g *GlobalFlags) notaryTool() (*notarize.Tool, error) {
	opts := []notarize.Opt{
		notarize.MaxRetries(g.Retry),
		notarize.WithLogger(g.log),
	}
	if g.DryRun {
		opts = append(opts, notarize.DryRun())
	}

	t, err := notarize.NewTool(notarize.Creds{
		KeychainProfile: g.KeychainProfile,
		SigningIdentity: g.SigningID,
		TeamID:          g.TeamID,
	}, opts...)
	if err != nil {
		return nil, trace.Wrap(err, "notarization credentials required, use --dry-run to skip")
	}
	return t, nil
}
