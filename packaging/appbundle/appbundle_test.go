package appbundle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SacrilegeWasTaken/olovebar-tools/packaging/icon"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeIconGen struct {
	calls int
	err   error
}

func (f *fakeIconGen) Generate(ctx context.Context, source, resourcesDir string) (*icon.Report, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	container := filepath.Join(resourcesDir, icon.ContainerName)
	if err := os.WriteFile(container, []byte("icns"), 0o644); err != nil {
		return nil, err
	}
	return &icon.Report{Container: container}, nil
}

type fixture struct {
	dir        string
	executable string
	output     string
	infoPlist  string
	logo       string
}

// newFixture creates an executable without any execute bits.
func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:        dir,
		executable: filepath.Join(dir, ".build", "release", "olovebar"),
		output:     filepath.Join(dir, "dist", "OLoveBar.app"),
		infoPlist:  filepath.Join(dir, "Info.plist"),
		logo:       filepath.Join(dir, "Resources", "logo.png"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.executable), 0o755))
	require.NoError(t, os.WriteFile(f.executable, []byte("#!/bin/sh\necho olovebar\n"), 0o600))
	return f
}

func (f fixture) info() Info {
	return Info{
		Executable: f.executable,
		OutputPath: f.output,
		AppName:    "OLoveBar",
		BundleID:   "com.sacrilege.olovebar",
		InfoPlist:  f.infoPlist,
		Logo:       f.logo,
	}
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() {
			rel, err := filepath.Rel(root, path)
			require.NoError(t, err)
			files = append(files, rel)
		}
		return nil
	}))
	return files
}

func TestNewPackager_missingExecutable(t *testing.T) {
	f := newFixture(t)
	info := f.info()
	info.Executable = filepath.Join(f.dir, "does-not-exist")

	_, err := NewPackager(info, WithLogger(discard))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutableNotFound)
	assert.NoDirExists(t, f.output)
	assert.NoDirExists(t, filepath.Dir(f.output))

	info.Executable = ""
	_, err = NewPackager(info, WithLogger(discard))
	assert.ErrorIs(t, err, ErrExecutableNotFound)
}

func TestPackage(t *testing.T) {
	ctx := context.Background()

	t.Run("minimal bundle without descriptor or logo", func(t *testing.T) {
		f := newFixture(t)
		var out bytes.Buffer
		gen := &fakeIconGen{}

		pkg, err := NewPackager(f.info(), WithLogger(discard), WithOutput(&out), WithIconGenerator(gen))
		require.NoError(t, err)
		require.NoError(t, pkg.Package(ctx))

		assert.ElementsMatch(t, []string{
			filepath.Join("Contents", "MacOS", "OLoveBar"),
			filepath.Join("Contents", "PkgInfo"),
		}, listTree(t, f.output))
		assert.DirExists(t, filepath.Join(f.output, "Contents", "Resources"))

		info, err := os.Stat(filepath.Join(f.output, "Contents", "MacOS", "OLoveBar"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

		pkgInfo, err := os.ReadFile(filepath.Join(f.output, "Contents", "PkgInfo"))
		require.NoError(t, err)
		assert.Equal(t, []byte("APPL????"), pkgInfo)
		assert.Len(t, pkgInfo, 8)

		assert.Equal(t, "Warning: Info.plist not found at "+f.infoPlist+"\n", out.String())
		assert.Zero(t, gen.calls)
	})

	t.Run("descriptor and logo", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.WriteFile(f.infoPlist, []byte("<plist/>"), 0o600))
		require.NoError(t, os.MkdirAll(filepath.Dir(f.logo), 0o755))
		require.NoError(t, os.WriteFile(f.logo, []byte("png"), 0o644))
		gen := &fakeIconGen{}

		pkg, err := NewPackager(f.info(), WithLogger(discard), WithOutput(io.Discard), WithIconGenerator(gen))
		require.NoError(t, err)
		require.NoError(t, pkg.Package(ctx))

		assert.ElementsMatch(t, []string{
			filepath.Join("Contents", "Info.plist"),
			filepath.Join("Contents", "MacOS", "OLoveBar"),
			filepath.Join("Contents", "PkgInfo"),
			filepath.Join("Contents", "Resources", icon.ContainerName),
		}, listTree(t, f.output))
		assert.Equal(t, 1, gen.calls)

		plist, err := os.ReadFile(filepath.Join(f.output, "Contents", "Info.plist"))
		require.NoError(t, err)
		assert.Equal(t, "<plist/>", string(plist))
	})

	t.Run("replaces existing bundle", func(t *testing.T) {
		f := newFixture(t)
		stale := filepath.Join(f.output, "Contents", "Resources", "stale.txt")
		require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
		require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

		pkg, err := NewPackager(f.info(), WithLogger(discard), WithOutput(io.Discard), WithIconGenerator(&fakeIconGen{}))
		require.NoError(t, err)
		require.NoError(t, pkg.Package(ctx))

		assert.NoFileExists(t, stale)
		assert.FileExists(t, filepath.Join(f.output, "Contents", "PkgInfo"))
	})

	t.Run("failure keeps previous bundle and removes staging", func(t *testing.T) {
		f := newFixture(t)
		previous := filepath.Join(f.output, "Contents", "PkgInfo")
		require.NoError(t, os.MkdirAll(filepath.Dir(previous), 0o755))
		require.NoError(t, os.WriteFile(previous, []byte("previous"), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Dir(f.logo), 0o755))
		require.NoError(t, os.WriteFile(f.logo, []byte("png"), 0o644))

		pkg, err := NewPackager(f.info(), WithLogger(discard), WithOutput(io.Discard), WithIconGenerator(&fakeIconGen{err: errors.New("disk full")}))
		require.NoError(t, err)
		require.Error(t, pkg.Package(ctx))

		content, err := os.ReadFile(previous)
		require.NoError(t, err)
		assert.Equal(t, "previous", string(content))

		entries, err := os.ReadDir(filepath.Dir(f.output))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "OLoveBar.app", entries[0].Name())
	})

	t.Run("generated descriptor", func(t *testing.T) {
		f := newFixture(t)
		info := f.info()
		info.GenerateInfoPlist = true
		info.Version = "1.1.0"

		pkg, err := NewPackager(info, WithLogger(discard), WithOutput(io.Discard), WithIconGenerator(&fakeIconGen{}))
		require.NoError(t, err)
		require.NoError(t, pkg.Package(ctx))

		plist, err := os.ReadFile(filepath.Join(f.output, "Contents", "Info.plist"))
		require.NoError(t, err)
		assert.Contains(t, string(plist), "<string>com.sacrilege.olovebar</string>")
		assert.Contains(t, string(plist), "<string>1.1.0</string>")
		assert.Contains(t, string(plist), "<key>LSUIElement</key>")
		assert.NotContains(t, string(plist), "CFBundleIconFile")
	})

	t.Run("default app name from output", func(t *testing.T) {
		f := newFixture(t)
		info := f.info()
		info.AppName = ""

		pkg, err := NewPackager(info, WithLogger(discard))
		require.NoError(t, err)
		assert.Equal(t, "OLoveBar", pkg.Info.AppName)
	})
}

func TestRenderInfoPlist(t *testing.T) {
	out := renderInfoPlist(plistValues{AppName: "A&B", BundleID: "com.example.ab", HasIcon: true})
	assert.Contains(t, out, "<string>A&amp;B</string>")
	assert.Contains(t, out, "<string>1.0</string>")
	assert.Contains(t, out, "<key>CFBundleIconFile</key>\n\t<string>AppIcon</string>")
}
