package forge

import (
	"context"
	"fmt"
	"net/url"

	"github.com/commitfmt/commitfmt-bridge/internal/config"
	"github.com/commitfmt/commitfmt-bridge/internal/httpclient"
)

// Gitee lists open issues via the Gitee REST API. Gitee authenticates with
// an access_token query parameter rather than a header, which is why the
// HTTP client redacts that parameter when logging.
type Gitee struct {
	platform
}

// NewGitee creates the Gitee platform.
func NewGitee(client *httpclient.Client, creds config.Credentials, opts Options) (*Gitee, error) {
	p, err := newPlatform(client, creds, opts)
	if err != nil {
		return nil, err
	}
	return &Gitee{platform: p}, nil
}

func (g *Gitee) Kind() Kind { return KindGitee }

// ResolveToken prefers the explicit settings-file token over the
// GITEE_TOKEN environment variable.
func (g *Gitee) ResolveToken(ctx context.Context, repo RepoInfo) (string, bool) {
	return g.cachedToken(repo, func() (string, bool) {
		if token := g.creds.Settings.Tokens.Gitee; token != "" {
			return token, true
		}
		if token := g.creds.Env.Gitee; token != "" {
			return token, true
		}
		return "", false
	})
}

type giteeIssue struct {
	ID      int64  `json:"id"`
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

func (g *Gitee) ListOpenIssues(ctx context.Context, repo RepoInfo, token string, max int) ([]Issue, error) {
	return collectIssues(ctx, max, func(ctx context.Context, page, perPage int) ([]Issue, error) {
		requestURL := fmt.Sprintf("%s/repos/%s/%s/issues?state=open&access_token=%s&page=%d&per_page=%d",
			repo.APIBaseURL, repo.Owner, repo.Repo, url.QueryEscape(token), page, perPage)

		opts := httpclient.RequestOptions{Timeout: g.timeout}

		var payload []giteeIssue
		if err := g.client.DoJSONWithRetry(ctx, requestURL, opts, &payload, g.retries); err != nil {
			return nil, fmt.Errorf("gitee issue fetch failed for %s: %w", repo.Slug(), err)
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

func (g *Gitee) Close() error { return g.close() }
