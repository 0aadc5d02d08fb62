package main

import (
	"fmt"

	"github.com/gravitational/trace"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/config"
	"github.com/SacrilegeWasTaken/olovebar-tools/release"
)

// CaskCmd pins the Homebrew cask to a disk image.
type CaskCmd struct {
	DMG     string `name:"dmg" required:"" help:"Disk image the cask downloads."`
	Version string `help:"Release version. Defaults to the git tag at HEAD."`
	Cask    string `help:"Cask file to update. Defaults to the configured cask."`
}

func (c *CaskCmd) Run(cli *CLI) error {
	version, err := resolveVersion(c.Version)
	if err != nil {
		return trace.Wrap(err)
	}
	cask := or(c.Cask, cli.project.Cask)
	if err := release.UpdateCask(cask, version, c.DMG); err != nil {
		return trace.Wrap(err)
	}

	fmt.Fprintf(cli.stdout, "✓ Updated %s to %s\n", cask, version)
	return nil
}

// ReleaseCmd uploads assets to the GitHub release of a tag.
type ReleaseCmd struct {
	Assets []string `arg:"" help:"Files to attach to the release."`

	Tag   string `help:"Release tag. Defaults to the tag at HEAD."`
	Owner string `help:"Repository owner. Defaults to the configured github.owner."`
	Repo  string `help:"Repository name. Defaults to the configured github.repo."`
}

func (c *ReleaseCmd) Run(cli *CLI) error {
	tag := c.Tag
	if tag == "" {
		var err error
		// The release is looked up by the tag name as pushed, prefix included.
		if tag, err = release.Tag("."); err != nil {
			return trace.Wrap(err, "failed to find the release tag, pass --tag")
		}
	}
	owner := or(c.Owner, cli.project.GitHub.Owner)
	repo := or(c.Repo, cli.project.GitHub.Repo)

	if cli.DryRun {
		cli.log.InfoContext(cli.ctx, "dry run, skipping upload", "repository", owner+"/"+repo, "tag", tag, "assets", c.Assets)
		return nil
	}

	token, err := release.Token()
	if err != nil {
		return trace.Wrap(err)
	}
	publisher, err := release.NewPublisher(cli.ctx, owner, repo, token, release.WithLogger(cli.log))
	if err != nil {
		return trace.Wrap(err)
	}
	if err := publisher.Upload(cli.ctx, tag, c.Assets...); err != nil {
		return trace.Wrap(err)
	}

	fmt.Fprintf(cli.stdout, "✓ Uploaded %d asset(s) to %s/%s@%s\n", len(c.Assets), owner, repo, tag)
	return nil
}

func resolveVersion(version string) (string, error) {
	if version != "" {
		return version, nil
	}
	v, err := release.Version(".")
	return v, trace.Wrap(err, "failed to derive version from git, pass it explicitly")
}

// SchemaCmd prints the JSON schema of the config file.
type SchemaCmd struct{}

func (c *SchemaCmd) Run(cli *CLI) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return trace.Wrap(err)
	}
	_, err = fmt.Fprintln(cli.stdout, string(schema))
	return trace.Wrap(err)
}
