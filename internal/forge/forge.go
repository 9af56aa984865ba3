// Package forge models the hosted services ("forges") an editor repository
// can point at, and fetches their open issues through a shared HTTP client.
package forge

import (
	"context"
	"fmt"
)

// Kind identifies a supported forge.
type Kind string

const (
	KindGitHub Kind = "github"
	KindGitLab Kind = "gitlab"
	KindGitee  Kind = "gitee"

	// KindLocalGitLab is a self-hosted GitLab-compatible instance. It shares
	// the GitLab implementation but resolves tokens with extra fallbacks.
	KindLocalGitLab Kind = "local-gitlab"
)

// RepoInfo identifies a repository on a forge. It is produced once per remote
// URL by the remote parser and is immutable afterwards.
type RepoInfo struct {
	Kind       Kind   `json:"kind"`
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	APIBaseURL string `json:"apiBaseUrl"`
	HostURL    string `json:"hostUrl,omitempty"`
}

// Slug returns the owner/repo path of the repository.
func (r RepoInfo) Slug() string {
	return r.Owner + "/" + r.Repo
}

// Issue is a read-only snapshot of an open issue. Number is the issue number
// shown in the forge UI; on GitLab this is the per-project iid, not the
// global id.
type Issue struct {
	ID     int64  `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	URL    string `json:"url"`
}

// Platform fetches issues from one forge kind. Implementations are stateless
// apart from a private token cache, and share a single pooled HTTP client.
type Platform interface {
	Kind() Kind

	// ResolveToken returns the access token for the repository's host, or
	// false when no credential is configured anywhere in the resolution
	// chain. It never fails: absence is an expected state the caller uses
	// to prompt for credentials.
	ResolveToken(ctx context.Context, repo RepoInfo) (string, bool)

	// ListOpenIssues fetches up to max open issues for the repository,
	// paging sequentially until max is reached or the forge returns a short
	// or empty page. Cancelling ctx between pages stops paging early and
	// returns the issues accumulated so far without error.
	ListOpenIssues(ctx context.Context, repo RepoInfo, token string, max int) ([]Issue, error)

	// Close releases the platform's token cache.
	Close() error
}

// MissingTokenError indicates that no access token could be resolved for a
// forge host. It is deliberately distinct from an empty issue list: a
// repository with zero open issues is a successful fetch.
type MissingTokenError struct {
	Kind Kind
	Host string
}

func (e *MissingTokenError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("no access token configured for %s (%s)", e.Kind, e.Host)
	}
	return fmt.Sprintf("no access token configured for %s", e.Kind)
}

// UnsupportedForgeError indicates a forge kind with no registered platform.
type UnsupportedForgeError struct {
	Kind Kind
}

func (e *UnsupportedForgeError) Error() string {
	return fmt.Sprintf("unsupported forge kind: %q", e.Kind)
}
