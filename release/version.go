package release

import (
	"sort"
	"strings"

	go_git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/gravitational/trace"
)

// Version returns the release version of the repository containing dir.
// It is the tag pointing at HEAD without its "v" prefix, or
// 0.0.0-<short hash> when HEAD is not tagged. With several tags on HEAD
// the lexically greatest one wins.
func Version(dir string) (string, error) {
	tag, head, err := headTag(dir)
	if err != nil {
		return "", trace.Wrap(err)
	}
	if tag == "" {
		return "0.0.0-" + head.String()[:7], nil
	}
	return strings.TrimPrefix(tag, "v"), nil
}

// Tag returns the tag pointing at HEAD as it is named in the repository,
// prefix included. It fails with a NotFound error when HEAD is not tagged.
func Tag(dir string) (string, error) {
	tag, head, err := headTag(dir)
	if err != nil {
		return "", trace.Wrap(err)
	}
	if tag == "" {
		return "", trace.NotFound("HEAD (%s) is not tagged", head.String()[:7])
	}
	return tag, nil
}

func headTag(dir string) (string, plumbing.Hash, error) {
	repo, err := go_git.PlainOpenWithOptions(dir, &go_git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", plumbing.ZeroHash, trace.Wrap(err, "failed to open repository at %q", dir)
	}
	head, err := repo.Head()
	if err != nil {
		return "", plumbing.ZeroHash, trace.Wrap(err, "can't resolve HEAD")
	}

	tags, err := repo.Tags()
	if err != nil {
		return "", plumbing.ZeroHash, trace.Wrap(err)
	}
	var matches []string
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		// Annotated tags point at a tag object rather than the commit.
		if tag, err := repo.TagObject(hash); err == nil {
			commit, err := tag.Commit()
			if err != nil {
				return nil
			}
			hash = commit.Hash
		}
		if hash == head.Hash() {
			matches = append(matches, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return "", plumbing.ZeroHash, trace.Wrap(err)
	}

	if len(matches) == 0 {
		return "", head.Hash(), nil
	}
	sort.Strings(matches)
	return matches[len(matches)-1], head.Hash(), nil
}
