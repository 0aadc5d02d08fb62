package release

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"regexp"

	"github.com/gravitational/trace"
)

var (
	caskVersion = regexp.MustCompile(`(?m)^(\s*)version\s+"[^"]*"`)
	caskSHA256  = regexp.MustCompile(`(?m)^(\s*)sha256\s+(:no_check|"[0-9a-fA-F]*")`)
)

// UpdateCask pins version and the sha256 of the disk image in the Homebrew cask at path.
func UpdateCask(path, version, dmgPath string) error {
	if version == "" {
		return trace.BadParameter("version is required")
	}
	digest, err := FileSHA256(dmgPath)
	if err != nil {
		return trace.Wrap(err, "failed to hash disk image")
	}

	info, err := os.Stat(path)
	if err != nil {
		return trace.Wrap(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return trace.Wrap(err)
	}

	updated, err := rewriteCask(content, version, digest)
	if err != nil {
		return trace.Wrap(err, "cask %q", path)
	}
	return trace.Wrap(os.WriteFile(path, updated, info.Mode().Perm()))
}

func rewriteCask(content []byte, version, digest string) ([]byte, error) {
	if !caskVersion.Match(content) {
		return nil, trace.NotFound("no version stanza")
	}
	if !caskSHA256.Match(content) {
		return nil, trace.NotFound("no sha256 stanza")
	}
	content = caskVersion.ReplaceAll(content, []byte(`${1}version "`+version+`"`))
	content = caskSHA256.ReplaceAll(content, []byte(`${1}sha256 "`+digest+`"`))
	return content, nil
}

// FileSHA256 returns the hex encoded sha256 of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", trace.Wrap(err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", trace.Wrap(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
