package zipper

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gravitational/trace"
)

// DirZipperOpt is a functional option for configuring ZipDir.
type DirZipperOpt func(*dirZipperOpts)

type dirZipperOpts struct {
	includeParent bool
}

// IncludeParent keeps the root directory as a prefix in the zip file.
// App bundles must be submitted this way so the archive contains "OLoveBar.app/...".
func IncludeParent() DirZipperOpt {
	return func(o *dirZipperOpts) {
		o.includeParent = true
	}
}

// ZipDir writes a zip archive of dir to out. File modes are kept and symlinks
// are stored as links, which codesign requires for bundles.
func ZipDir(dir string, out io.Writer, opts ...DirZipperOpt) (err error) {
	var o dirZipperOpts
	for _, opt := range opts {
		opt(&o)
	}

	dir = filepath.Clean(dir)
	base := dir
	if o.includeParent {
		base = filepath.Dir(dir)
	}

	zipwriter := zip.NewWriter(out)
	defer func() {
		if err == nil { // if NO errors
			// Closing finishes the write by writing the central directory.
			// To avoid propagating an error from an earlier operation only close if there is no error.
			err = trace.Wrap(zipwriter.Close())
		}
	}()

	return trace.Wrap(filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == base {
			return nil
		}

		name, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		if name == "." {
			return nil
		}

		info, err := os.Lstat(path)
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(name)

		switch {
		case d.IsDir():
			header.Name += "/"
			_, err := zipwriter.CreateHeader(header)
			return err
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			w, err := zipwriter.CreateHeader(header)
			if err != nil {
				return err
			}
			_, err = io.WriteString(w, link)
			return err
		default:
			header.Method = zip.Deflate
			w, err := zipwriter.CreateHeader(header)
			if err != nil {
				return err
			}
			return copyInto(w, path)
		}
	}))
}

func copyInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
