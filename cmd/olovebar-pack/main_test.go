package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	go_git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// projectDir changes into an empty project directory with a built executable
// that has no execute bits.
func projectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	exe := filepath.Join(".build", "release", "olovebar")
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0o755))
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o600))
	return dir
}

func TestBundle_endToEnd(t *testing.T) {
	dir := projectDir(t)

	res := runCLI(t, "bundle", ".build/release/olovebar", "dist/OLoveBar.app")
	require.Equal(t, 0, res.code, res.stderr)

	assert.Equal(t, "Warning: Info.plist not found at Info.plist\n✅ Created app bundle at dist/OLoveBar.app\n", res.stdout)

	exe := filepath.Join(dir, "dist", "OLoveBar.app", "Contents", "MacOS", "OLoveBar")
	info, err := os.Stat(exe)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	resources, err := os.ReadDir(filepath.Join(dir, "dist", "OLoveBar.app", "Contents", "Resources"))
	require.NoError(t, err)
	assert.Empty(t, resources)
	assert.NoFileExists(t, filepath.Join(dir, "dist", "OLoveBar.app", "Contents", "Info.plist"))
}

func TestBundle_usageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no arguments", args: []string{"bundle"}},
		{name: "missing output", args: []string{"bundle", ".build/release/olovebar"}},
		{name: "missing executable", args: []string{"bundle", ".build/release/missing", "dist/OLoveBar.app"}},
		{name: "unknown command", args: []string{"frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := projectDir(t)

			res := runCLI(t, tt.args...)
			assert.Equal(t, 2, res.code, res.stderr)
			assert.NoDirExists(t, filepath.Join(dir, "dist"))
		})
	}
}

func TestBundle_configOverrides(t *testing.T) {
	dir := projectDir(t)
	require.NoError(t, os.WriteFile("olovebar.yaml", []byte("app_name: LoveBar\n"), 0o644))
	require.NoError(t, os.WriteFile("Info.plist", []byte("<plist/>"), 0o644))

	res := runCLI(t, "bundle", ".build/release/olovebar", "dist/LoveBar.app", "com.example.lovebar")
	require.Equal(t, 0, res.code, res.stderr)

	assert.FileExists(t, filepath.Join(dir, "dist", "LoveBar.app", "Contents", "MacOS", "LoveBar"))
	assert.FileExists(t, filepath.Join(dir, "dist", "LoveBar.app", "Contents", "Info.plist"))
	assert.NotContains(t, res.stdout, "Info.plist not found")
}

func TestInvalidConfig(t *testing.T) {
	projectDir(t)
	require.NoError(t, os.WriteFile("olovebar.yaml", []byte("build_configuration: fast\n"), 0o644))

	res := runCLI(t, "schema")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "build_configuration")
}

func TestDMG_missingApp(t *testing.T) {
	dir := projectDir(t)

	res := runCLI(t, "dmg", "--app", "dist/OLoveBar.app", "--output", "dist/OLoveBar.dmg")
	assert.Equal(t, 1, res.code)
	assert.NoFileExists(t, filepath.Join(dir, "dist", "OLoveBar.dmg"))
	assert.NoDirExists(t, filepath.Join(dir, "dist", "temp_dmg"))
}

func TestDMG_requiredFlags(t *testing.T) {
	projectDir(t)

	res := runCLI(t, "dmg", "--app", "dist/OLoveBar.app")
	assert.Equal(t, 2, res.code)
}

func TestSchema(t *testing.T) {
	projectDir(t)

	res := runCLI(t, "schema")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "bundle_id")
	assert.Contains(t, res.stdout, "min_macos_major")
}

func TestCask(t *testing.T) {
	dir := projectDir(t)
	require.NoError(t, os.MkdirAll("Casks", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("Casks", "olovebar.rb"),
		[]byte("cask \"olovebar\" do\n  version \"1.1.0\"\n  sha256 :no_check\nend\n"), 0o644))
	require.NoError(t, os.WriteFile("OLoveBar.dmg", []byte("dmg"), 0o644))

	res := runCLI(t, "cask", "--dmg", "OLoveBar.dmg", "--version", "1.2.0")
	require.Equal(t, 0, res.code, res.stderr)

	content, err := os.ReadFile(filepath.Join(dir, "Casks", "olovebar.rb"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `version "1.2.0"`)
	assert.NotContains(t, string(content), ":no_check")
}

func TestNotarize_requiresCredentials(t *testing.T) {
	projectDir(t)
	for _, env := range []string{"OLOVEBAR_KEYCHAIN_PROFILE", "OLOVEBAR_SIGNING_ID", "OLOVEBAR_TEAM_ID"} {
		t.Setenv(env, "")
	}

	res := runCLI(t, "notarize", ".build/release/olovebar")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "--dry-run")
}

func TestRelease_dryRunTag(t *testing.T) {
	dir := projectDir(t)
	repo, err := go_git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile("OLoveBar.dmg", []byte("dmg"), 0o644))
	_, err = wt.Add("OLoveBar.dmg")
	require.NoError(t, err)
	hash, err := wt.Commit("release", &go_git.CommitOptions{
		Author: &object.Signature{Name: "OLoveBar", Email: "dev@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)

	res := runCLI(t, "--dry-run", "release", "OLoveBar.dmg")
	assert.Equal(t, 1, res.code, res.stderr)
	assert.Contains(t, res.stderr, "pass --tag")

	_, err = repo.CreateTag("v1.2.0", hash, nil)
	require.NoError(t, err)

	res = runCLI(t, "--dry-run", "release", "OLoveBar.dmg")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "tag=v1.2.0")
}
