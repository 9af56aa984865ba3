package forge

import (
	"context"
	"fmt"
	"net/http"

	"github.com/commitfmt/commitfmt-bridge/internal/config"
	"github.com/commitfmt/commitfmt-bridge/internal/httpclient"
)

// GitHub lists open issues via the GitHub REST API, authenticating with a
// bearer token.
type GitHub struct {
	platform
}

// NewGitHub creates the GitHub platform.
func NewGitHub(client *httpclient.Client, creds config.Credentials, opts Options) (*GitHub, error) {
	p, err := newPlatform(client, creds, opts)
	if err != nil {
		return nil, err
	}
	return &GitHub{platform: p}, nil
}

func (g *GitHub) Kind() Kind { return KindGitHub }

// ResolveToken prefers the explicit settings-file token over the
// GITHUB_TOKEN environment variable.
func (g *GitHub) ResolveToken(ctx context.Context, repo RepoInfo) (string, bool) {
	return g.cachedToken(repo, func() (string, bool) {
		if token := g.creds.Settings.Tokens.GitHub; token != "" {
			return token, true
		}
		if token := g.creds.Env.GitHub; token != "" {
			return token, true
		}
		return "", false
	})
}

// githubIssue is the subset of the GitHub issue payload the bridge needs.
type githubIssue struct {
	ID      int64  `json:"id"`
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

func (g *GitHub) ListOpenIssues(ctx context.Context, repo RepoInfo, token string, max int) ([]Issue, error) {
	return collectIssues(ctx, max, func(ctx context.Context, page, perPage int) ([]Issue, error) {
		url := fmt.Sprintf("%s/repos/%s/%s/issues?state=open&page=%d&per_page=%d",
			repo.APIBaseURL, repo.Owner, repo.Repo, page, perPage)

		opts := httpclient.RequestOptions{
			Header: http.Header{
				"Accept":        []string{"application/vnd.github+json"},
				"Authorization": []string{"Bearer " + token},
			},
			Timeout: g.timeout,
		}

		var payload []githubIssue
		if err := g.client.DoJSONWithRetry(ctx, url, opts, &payload, g.retries); err != nil {
			return nil, fmt.Errorf("github issue fetch failed for %s: %w", repo.Slug(), err)
		}

		issues := make([]Issue, 0, len(payload))
		for _, item := range payload {
			issues = append(issues, Issue{
				ID:     item.ID,
				Number: item.Number,
				Title:  item.Title,
				State:  item.State,
				URL:    item.HTMLURL,
			})
		}

		return issues, nil
	})
}

func (g *GitHub) Close() error { return g.close() }
