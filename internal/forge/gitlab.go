package forge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/commitfmt/commitfmt-bridge/internal/config"
	"github.com/commitfmt/commitfmt-bridge/internal/httpclient"
)

// GitLab lists open issues via the GitLab REST API. The same implementation
// serves gitlab.com and self-hosted GitLab-compatible instances; the latter
// consult additional token sources.
type GitLab struct {
	platform
	selfHosted bool
}

// NewGitLab creates the platform for gitlab.com.
func NewGitLab(client *httpclient.Client, creds config.Credentials, opts Options) (*GitLab, error) {
	return newGitLab(client, creds, opts, false)
}

// NewLocalGitLab creates the platform for self-hosted GitLab-compatible
// instances.
func NewLocalGitLab(client *httpclient.Client, creds config.Credentials, opts Options) (*GitLab, error) {
	return newGitLab(client, creds, opts, true)
}

func newGitLab(client *httpclient.Client, creds config.Credentials, opts Options, selfHosted bool) (*GitLab, error) {
	p, err := newPlatform(client, creds, opts)
	if err != nil {
		return nil, err
	}
	return &GitLab{platform: p, selfHosted: selfHosted}, nil
}

func (g *GitLab) Kind() Kind {
	if g.selfHosted {
		return KindLocalGitLab
	}
	return KindGitLab
}

// ResolveToken resolves, in order: the explicit settings token, the
// environment variable, and — self-hosted only — the gitlab.com family
// token as a generic fallback, then the host-specific settings entry.
func (g *GitLab) ResolveToken(ctx context.Context, repo RepoInfo) (string, bool) {
	return g.cachedToken(repo, func() (string, bool) {
		settings := g.creds.Settings.Tokens

		if !g.selfHosted {
			if settings.GitLab != "" {
				return settings.GitLab, true
			}
			if g.creds.Env.GitLab != "" {
				return g.creds.Env.GitLab, true
			}
			return "", false
		}

		if settings.LocalGitLab != "" {
			return settings.LocalGitLab, true
		}
		if g.creds.Env.LocalGitLab != "" {
			return g.creds.Env.LocalGitLab, true
		}
		if settings.GitLab != "" {
			return settings.GitLab, true
		}
		if g.creds.Env.GitLab != "" {
			return g.creds.Env.GitLab, true
		}

		return g.creds.Settings.HostToken(hostname(repo.HostURL))
	})
}

// gitlabIssue is the subset of the GitLab issue payload the bridge needs.
// The iid is the issue number shown in the UI; the global id is not useful
// for commit references, so iid serves as both identifier and number.
type gitlabIssue struct {
	IID    int64  `json:"iid"`
	Title  string `json:"title"`
	State  string `json:"state"`
	WebURL string `json:"web_url"`
}

func (g *GitLab) ListOpenIssues(ctx context.Context, repo RepoInfo, token string, max int) ([]Issue, error) {
	// the project is addressed by its URL-encoded full path, one segment
	project := url.PathEscape(repo.Slug())

	return collectIssues(ctx, max, func(ctx context.Context, page, perPage int) ([]Issue, error) {
		requestURL := fmt.Sprintf("%s/projects/%s/issues?state=opened&page=%d&per_page=%d",
			repo.APIBaseURL, project, page, perPage)

		opts := httpclient.RequestOptions{
			Header:  http.Header{"Private-Token": []string{token}},
			Timeout: g.timeout,
		}

		var payload []gitlabIssue
		if err := g.client.DoJSONWithRetry(ctx, requestURL, opts, &payload, g.retries); err != nil {
			return nil, fmt.Errorf("gitlab issue fetch failed for %s: %w", repo.Slug(), err)
		}

		issues := make([]Issue, 0, len(payload))
		for _, item := range payload {
			issues = append(issues, Issue{
				ID:     item.IID,
				Number: int(item.IID),
				Title:  item.Title,
				State:  item.State,
				URL:    item.WebURL,
			})
		}

		return issues, nil
	})
}

func (g *GitLab) Close() error { return g.close() }

// hostname strips the scheme and port from a host URL.
func hostname(hostURL string) string {
	u, err := url.Parse(hostURL)
	if err != nil {
		return hostURL
	}
	return u.Hostname()
}
