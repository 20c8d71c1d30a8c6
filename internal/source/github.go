package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/starford/blogit/internal/apperr"
	"github.com/starford/blogit/internal/models"
)

const commitsPerPage = 100

// GitHubOptions identifies the repository and credentials.
type GitHubOptions struct {
	Token      string
	User       string
	Repository string
	Branch     string // empty selects the default branch
	BaseURL    string // API root, e.g. https://ghe.example.com/api/v3/
	HTTPClient *http.Client
}

// GitHub reads documents through the GitHub REST API.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	ref    string
}

// NewGitHub builds a GitHub source. The token is only passed along as a
// bearer credential.
func NewGitHub(opts GitHubOptions) (*GitHub, error) {
	client := github.NewClient(opts.HTTPClient)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("source: parse base url: %w", err)
		}
		client.BaseURL = u
	}
	return &GitHub{
		client: client,
		owner:  opts.User,
		repo:   opts.Repository,
		ref:    opts.Branch,
	}, nil
}

func (g *GitHub) contentOptions() *github.RepositoryContentGetOptions {
	if g.ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: g.ref}
}

// ListDirectory implements Source.
func (g *GitHub) ListDirectory(ctx context.Context, path string) ([]models.Entry, error) {
	_, dir, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, g.contentOptions())
	if err != nil {
		return nil, apperr.NewRemoteSourceError(OpList, path, classify(resp, err))
	}
	if dir == nil {
		return nil, apperr.NewRemoteSourceError(OpList, path, errors.New("path is a file, not a directory"))
	}

	out := make([]models.Entry, 0, len(dir))
	for _, c := range dir {
		out = append(out, models.Entry{
			Name: c.GetName(),
			Path: c.GetPath(),
			SHA:  c.GetSHA(),
			Type: c.GetType(),
		})
	}
	return out, nil
}

// GetFile implements Source.
func (g *GitHub) GetFile(ctx context.Context, path string) (*models.RemoteFile, error) {
	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, g.contentOptions())
	if err != nil {
		return nil, apperr.NewRemoteSourceError(OpGetFile, path, classify(resp, err))
	}
	if file == nil {
		return nil, apperr.NewRemoteSourceError(OpGetFile, path, errors.New("path is a directory, not a file"))
	}
	// RepositoryContent.GetContent decodes; the model keeps the raw base64.
	var content string
	if file.Content != nil {
		content = *file.Content
	}
	return &models.RemoteFile{
		Name:        file.GetName(),
		Path:        file.GetPath(),
		SHA:         file.GetSHA(),
		URL:         file.GetURL(),
		HTMLURL:     file.GetHTMLURL(),
		GitURL:      file.GetGitURL(),
		DownloadURL: file.GetDownloadURL(),
		Content:     content,
		Encoding:    file.GetEncoding(),
	}, nil
}

// GetCommits implements Source. All pages are fetched; GitHub returns the
// newest commit first.
func (g *GitHub) GetCommits(ctx context.Context, path string) ([]models.Commit, error) {
	opts := &github.CommitsListOptions{
		SHA:         g.ref,
		Path:        path,
		ListOptions: github.ListOptions{PerPage: commitsPerPage},
	}

	var out []models.Commit
	for {
		page, resp, err := g.client.Repositories.ListCommits(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, apperr.NewRemoteSourceError(OpCommits, path, classify(resp, err))
		}
		for _, rc := range page {
			out = append(out, commitFromGitHub(rc))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func commitFromGitHub(rc *github.RepositoryCommit) models.Commit {
	c := models.Commit{
		SHA:     rc.GetSHA(),
		HTMLURL: rc.GetHTMLURL(),
		Message: rc.GetCommit().GetMessage(),
		Date:    rc.GetCommit().GetAuthor().GetDate().Time,
	}
	if u := rc.GetAuthor(); u != nil {
		c.Author = models.CommitAuthor{
			Login:     u.GetLogin(),
			AvatarURL: u.GetAvatarURL(),
			HTMLURL:   u.GetHTMLURL(),
		}
	} else {
		// Commits by emails not linked to an account carry no user.
		c.Author = models.CommitAuthor{Login: rc.GetCommit().GetAuthor().GetName()}
	}
	return c
}

// RateLimit is the state of the core API quota.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// RateLimit reports the core API quota for the configured credential.
func (g *GitHub) RateLimit(ctx context.Context) (*RateLimit, error) {
	limits, resp, err := g.client.RateLimit.Get(ctx)
	if err != nil {
		return nil, apperr.NewRemoteSourceError("rate limit", "", classify(resp, err))
	}
	core := limits.GetCore()
	if core == nil {
		return nil, apperr.NewRemoteSourceError("rate limit", "", errors.New("no core rate in response"))
	}
	return &RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     core.Reset.Time,
	}, nil
}

func classify(resp *github.Response, err error) error {
	if resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound {
		return errors.Join(apperr.ErrNotFound, err)
	}
	return err
}
