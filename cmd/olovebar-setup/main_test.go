package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SacrilegeWasTaken/olovebar-tools/install"
	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec/exectest"
	"github.com/SacrilegeWasTaken/olovebar-tools/setup"
)

// writeConfig writes a config file installing into a temporary directory and
// returns the config path and install path.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	installPath := filepath.Join(dir, "bin", "olovebar")
	cfg := filepath.Join(dir, "olovebar.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("install_path: "+installPath+"\n"), 0o644))
	return cfg, installPath
}

func newCLI(opts ...func(*cli)) (*cli, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	c := &cli{stdout: &stdout, stderr: &stderr}
	for _, opt := range opts {
		opt(c)
	}
	return c, &stdout, &stderr
}

func TestUninstall(t *testing.T) {
	t.Run("not installed", func(t *testing.T) {
		cfg, _ := writeConfig(t)
		runner := exectest.NewRunner()
		c, stdout, _ := newCLI(func(c *cli) {
			c.installerOpts = []install.Opt{install.WithPrivilegedRunner(runner)}
		})

		code := c.run(context.Background(), []string{"--config", cfg, "uninstall"})
		assert.Equal(t, 0, code)
		assert.Contains(t, stdout.String(), "✓ olovebar not installed")
		assert.Empty(t, runner.Calls())
	})

	t.Run("removal failure", func(t *testing.T) {
		cfg, installPath := writeConfig(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(installPath), 0o755))
		require.NoError(t, os.WriteFile(installPath, []byte("exe"), 0o755))
		runner := exectest.NewRunner().Handle("rm", func([]string) (string, error) {
			return "", errors.New("Operation not permitted")
		})
		c, _, stderr := newCLI(func(c *cli) {
			c.installerOpts = []install.Opt{install.WithPrivilegedRunner(runner)}
		})

		code := c.run(context.Background(), []string{"--config", cfg, "uninstall"})
		assert.Equal(t, 1, code)
		assert.Contains(t, stderr.String(), "Operation not permitted")
	})
}

func TestInstall_buildFailure(t *testing.T) {
	cfg, installPath := writeConfig(t)
	builder := exectest.NewRunner().Handle("swift", func([]string) (string, error) {
		return "", errors.New("error: no such module 'AppKit'")
	})
	privileged := exectest.NewRunner()
	c, _, _ := newCLI(func(c *cli) {
		c.installerOpts = []install.Opt{install.WithBuildRunner(builder), install.WithPrivilegedRunner(privileged)}
	})

	code := c.run(context.Background(), []string{"--config", cfg, "install", "--project-dir", t.TempDir()})
	assert.Equal(t, 1, code)
	assert.Empty(t, privileged.Calls())
	assert.NoFileExists(t, installPath)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		missing  string
		expected int
	}{
		{name: "supported", version: "26.0", expected: 0},
		{name: "unsupported", version: "15.7", expected: 1},
		{name: "swift needs manual install", version: "26.0", missing: "swift", expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := writeConfig(t)
			runner := exectest.NewRunner()
			c, stdout, _ := newCLI(func(c *cli) {
				c.checkerOpts = []setup.Opt{
					setup.WithCommandRunner(runner),
					setup.WithVersionProbe(func(context.Context) (string, error) { return tt.version, nil }),
					setup.WithLookPath(func(cmd string) (string, error) {
						if cmd == tt.missing {
							return "", errors.New("not found")
						}
						return "/usr/bin/" + cmd, nil
					}),
				}
			})

			code := c.run(context.Background(), []string{"--config", cfg, "check"})
			assert.Equal(t, tt.expected, code, stdout.String())
		})
	}
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"install", "--no-such-flag"},
	} {
		c, _, _ := newCLI()
		assert.Equal(t, 2, c.run(context.Background(), args), args)
	}
}

func TestHelp(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "app", args: []string{"--help"}},
		{name: "install", args: []string{"install", "--help"}},
		{name: "uninstall", args: []string{"uninstall", "--help"}},
		{name: "check", args: []string{"check", "-h"}},
		{name: "help command", args: []string{"help", "uninstall"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, installPath := writeConfig(t)
			require.NoError(t, os.MkdirAll(filepath.Dir(installPath), 0o755))
			require.NoError(t, os.WriteFile(installPath, []byte("exe"), 0o755))

			runner := exectest.NewRunner()
			c, stdout, _ := newCLI(func(c *cli) {
				c.installerOpts = []install.Opt{install.WithBuildRunner(runner), install.WithPrivilegedRunner(runner)}
				c.checkerOpts = []setup.Opt{
					setup.WithCommandRunner(runner),
					setup.WithVersionProbe(func(context.Context) (string, error) { return "26.0", nil }),
					setup.WithLookPath(func(string) (string, error) { return "", errors.New("not found") }),
				}
			})

			code := c.run(context.Background(), append([]string{"--config", cfg}, tt.args...))
			assert.Equal(t, 0, code)
			assert.Empty(t, runner.Calls())
			assert.Contains(t, stdout.String(), "usage: olovebar-setup")
			assert.FileExists(t, installPath)
		})
	}
}
