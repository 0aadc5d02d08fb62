package release

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cli/go-gh/v2/pkg/auth"
	go_github "github.com/google/go-github/v37/github"
	"github.com/gravitational/trace"
	"golang.org/x/oauth2"
)

const (
	TokenEnv      = "GITHUB_TOKEN"
	ClientTimeout = 5 * time.Minute
)

var ErrTokenNotFound = errors.New("could not find a GitHub token configured on system")

type releasesService interface {
	GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*go_github.RepositoryRelease, *go_github.Response, error)
	CreateRelease(ctx context.Context, owner, repo string, release *go_github.RepositoryRelease) (*go_github.RepositoryRelease, *go_github.Response, error)
	ListReleaseAssets(ctx context.Context, owner, repo string, id int64, opts *go_github.ListOptions) ([]*go_github.ReleaseAsset, *go_github.Response, error)
	DeleteReleaseAsset(ctx context.Context, owner, repo string, id int64) (*go_github.Response, error)
	UploadReleaseAsset(ctx context.Context, owner, repo string, id int64, opts *go_github.UploadOptions, file *os.File) (*go_github.ReleaseAsset, *go_github.Response, error)
}

// Publisher uploads release assets to a GitHub repository.
type Publisher struct {
	owner    string
	repo     string
	releases releasesService
	log      *slog.Logger
}

// PublisherOpt is a functional option for configuring a Publisher.
type PublisherOpt func(*Publisher)

// WithLogger sets the logger. By default, slog.Default() is used.
func WithLogger(log *slog.Logger) PublisherOpt {
	return func(p *Publisher) {
		p.log = log
	}
}

func withReleasesService(svc releasesService) PublisherOpt {
	return func(p *Publisher) {
		p.releases = svc
	}
}

// Token returns the GitHub token from GITHUB_TOKEN or the gh credential chain
// (gh config file, then the system keyring).
func Token() (string, error) {
	if token := os.Getenv(TokenEnv); token != "" {
		return token, nil
	}
	if token, _ := auth.TokenForHost("github.com"); token != "" {
		return token, nil
	}
	return "", trace.Wrap(ErrTokenNotFound)
}

// NewPublisher returns a Publisher for owner/repo authenticated with token.
func NewPublisher(ctx context.Context, owner, repo, token string, opts ...PublisherOpt) (*Publisher, error) {
	if owner == "" || repo == "" {
		return nil, trace.BadParameter("repository owner and name are required")
	}
	p := &Publisher{
		owner: owner,
		repo:  repo,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.releases == nil {
		if token == "" {
			return nil, trace.Wrap(ErrTokenNotFound)
		}
		clt := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
		clt.Timeout = ClientTimeout
		p.releases = go_github.NewClient(clt).Repositories
	}
	return p, nil
}

// Upload attaches the assets to the release for tag, creating the release if
// needed. An existing asset with the same name is replaced.
func (p *Publisher) Upload(ctx context.Context, tag string, assets ...string) error {
	release, err := p.release(ctx, tag)
	if err != nil {
		return trace.Wrap(err)
	}

	existing, err := p.listAssets(ctx, release.GetID())
	if err != nil {
		return trace.Wrap(err)
	}

	for _, asset := range assets {
		name := filepath.Base(asset)
		if old, ok := existing[name]; ok {
			p.log.InfoContext(ctx, "replacing release asset", "name", name)
			if _, err := p.releases.DeleteReleaseAsset(ctx, p.owner, p.repo, old.GetID()); err != nil {
				return trace.Wrap(err, "failed to delete asset %q", name)
			}
		}
		if err := p.upload(ctx, release.GetID(), asset); err != nil {
			return trace.Wrap(err)
		}
		p.log.InfoContext(ctx, "uploaded release asset", "tag", tag, "name", name)
	}
	return nil
}

func (p *Publisher) release(ctx context.Context, tag string) (*go_github.RepositoryRelease, error) {
	release, resp, err := p.releases.GetReleaseByTag(ctx, p.owner, p.repo, tag)
	if err == nil {
		return release, nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return nil, trace.Wrap(err, "failed to get release %q", tag)
	}

	p.log.InfoContext(ctx, "creating release", "tag", tag)
	release, _, err = p.releases.CreateRelease(ctx, p.owner, p.repo, &go_github.RepositoryRelease{
		TagName: go_github.String(tag),
		Name:    go_github.String(tag),
	})
	if err != nil {
		return nil, trace.Wrap(err, "failed to create release %q", tag)
	}
	return release, nil
}

func (p *Publisher) listAssets(ctx context.Context, releaseID int64) (map[string]*go_github.ReleaseAsset, error) {
	assets := map[string]*go_github.ReleaseAsset{}
	opts := &go_github.ListOptions{PerPage: 100}
	for {
		page, resp, err := p.releases.ListReleaseAssets(ctx, p.owner, p.repo, releaseID, opts)
		if err != nil {
			return nil, trace.Wrap(err, "failed to list release assets")
		}
		for _, a := range page {
			assets[a.GetName()] = a
		}
		if resp == nil || resp.NextPage == 0 {
			return assets, nil
		}
		opts.Page = resp.NextPage
	}
}

func (p *Publisher) upload(ctx context.Context, releaseID int64, asset string) error {
	f, err := os.Open(asset)
	if err != nil {
		return trace.Wrap(err)
	}
	defer f.Close()

	_, _, err = p.releases.UploadReleaseAsset(ctx, p.owner, p.repo, releaseID, &go_github.UploadOptions{
		Name: filepath.Base(asset),
	}, f)
	return trace.Wrap(err, "failed to upload %q", asset)
}
