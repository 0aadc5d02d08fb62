package fileutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gravitational/trace"
)

// CopyOpt is a functional option for configuring the copy operation.
type CopyOpt func(*copyOpts)

type copyOpts struct {
	destPermissions os.FileMode
}

// CopyFile copies a file from src to dst.
func CopyFile(src, dst string, opts ...CopyOpt) (err error) {
	var o copyOpts
	for _, opt := range opts {
		opt(&o)
	}

	r, err := os.Open(src)
	if err != nil {
		return trace.Wrap(err)
	}
	defer r.Close()

	info, err := r.Stat()
	if err != nil {
		return trace.Wrap(err)
	}
	if info.IsDir() {
		return trace.BadParameter("%q is a directory", src)
	}

	// If the destination permissions are not set, use the source permissions.
	if o.destPermissions == 0 {
		o.destPermissions = info.Mode().Perm()
	}

	w, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, o.destPermissions) // create or overwrite
	if err != nil {
		return trace.Wrap(err)
	}

	// Close the writer and remove the destination file if an error occurs.
	defer func() {
		closeErr := w.Close()
		if err == nil { // return close error if NO ERROR occurred before
			err = trace.Wrap(closeErr)
		}
		if err != nil {
			// Attempt to remove the destination file if an error occurred.
			err = trace.NewAggregate(err, trace.Wrap(os.Remove(dst), "failed to remove destination file"))
		}
	}()

	if _, err = io.Copy(w, r); err != nil {
		return trace.Wrap(err)
	}

	// OpenFile only applies the mode to new files and is subject to umask.
	if err = os.Chmod(dst, o.destPermissions); err != nil {
		return trace.Wrap(err)
	}

	return nil
}

// WithDestPermissions sets the permissions of the destination file.
// By default the destination file will have the same permissions as the source file.
func WithDestPermissions(perm os.FileMode) CopyOpt {
	return func(o *copyOpts) {
		o.destPermissions = perm
	}
}

// CopyDir recursively copies the directory tree at src to dst.
// dst must not exist. File modes are kept and symlinks are recreated, not followed.
func CopyDir(src, dst string) error {
	src = filepath.Clean(src)
	info, err := os.Stat(src)
	if err != nil {
		return trace.Wrap(err)
	}
	if !info.IsDir() {
		return trace.BadParameter("%q is not a directory", src)
	}
	if Exists(dst) {
		return trace.AlreadyExists("destination %q already exists", dst)
	}

	return trace.Wrap(filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		default:
			return CopyFile(path, target)
		}
	}))
}

// Exists reports whether anything, including a dangling symlink, exists at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsFile reports whether path exists and is not a directory.
func IsFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, trace.Wrap(err)
	}
	return !info.IsDir(), nil
}
