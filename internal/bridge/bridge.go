// Package bridge is the facade the HTTP surface talks to. It combines the
// remote URL parser, the platform registry and the in-memory caches into the
// operations the editor add-on needs: identify the repository, list its open
// issues, and invalidate cached state on demand.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/commitfmt/commitfmt-bridge/internal/cache"
	"github.com/commitfmt/commitfmt-bridge/internal/config"
	"github.com/commitfmt/commitfmt-bridge/internal/forge"
	"github.com/commitfmt/commitfmt-bridge/internal/remote"
	"github.com/rs/zerolog/log"
)

// ErrUnrecognizedRemote is returned when a remote URL matches none of the
// supported syntaxes. The caller should ask the user rather than crash.
var ErrUnrecognizedRemote = errors.New("unrecognized remote URL format")

// DefaultMaxIssues caps an issue listing when the caller does not say
// otherwise.
const DefaultMaxIssues = 100

// Bridge owns the repo-info and issue caches and orchestrates fetches
// through the platform registry. Construct it once and inject it wherever
// needed; it holds no global state.
type Bridge struct {
	registry *forge.Registry
	repos    *cache.Cache[forge.RepoInfo]
	issues   *cache.Cache[[]forge.Issue]
}

// New creates a Bridge around an existing registry. The registry stays owned
// by the caller; Close only releases the Bridge's own caches.
func New(registry *forge.Registry, cfg config.CacheConfig) (*Bridge, error) {
	repos, err := cache.New[forge.RepoInfo](cfg.RepoTTL(), cfg.RepoMaxSize)
	if err != nil {
		return nil, fmt.Errorf("repo cache configuration failed: %w", err)
	}

	issues, err := cache.New[[]forge.Issue](cfg.IssueTTL(), cfg.IssueMaxSize)
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("issue cache configuration failed: %w", err)
	}

	return &Bridge{
		registry: registry,
		repos:    repos,
		issues:   issues,
	}, nil
}

// Repo classifies a remote URL into a forge identity. Results are cached by
// the remote URL itself, so repeated calls for the current workspace don't
// re-parse.
func (b *Bridge) Repo(ctx context.Context, remoteURL string) (forge.RepoInfo, error) {
	if info, ok := b.repos.Get(remoteURL); ok {
		return info, nil
	}

	info, ok := remote.Parse(remoteURL)
	if !ok {
		return forge.RepoInfo{}, ErrUnrecognizedRemote
	}

	b.repos.Set(remoteURL, info)
	return info, nil
}

// ResolveToken reports whether a usable access token is configured for the
// remote's forge. The editor uses the result to decide whether to prompt for
// credentials before attempting an issue fetch.
func (b *Bridge) ResolveToken(ctx context.Context, remoteURL string) (bool, error) {
	info, err := b.Repo(ctx, remoteURL)
	if err != nil {
		return false, err
	}

	platform, ok := b.registry.Get(info.Kind)
	if !ok {
		return false, &forge.UnsupportedForgeError{Kind: info.Kind}
	}

	_, ok = platform.ResolveToken(ctx, info)
	return ok, nil
}

// ListOpenIssues returns up to max open issues for the repository behind the
// remote URL. A repository with no resolvable token is a hard failure, never
// an empty list: an empty list means the repository genuinely has no open
// issues.
func (b *Bridge) ListOpenIssues(ctx context.Context, remoteURL string, max int) ([]forge.Issue, error) {
	if max <= 0 {
		max = DefaultMaxIssues
	}

	info, err := b.Repo(ctx, remoteURL)
	if err != nil {
		return nil, err
	}

	key := issueKey(info)
	if cached, ok := b.issues.Get(key); ok {
		log.Ctx(ctx).Debug().Str("repo", key).Int("count", len(cached)).Msg("issue cache hit")
		return truncate(cached, max), nil
	}

	platform, ok := b.registry.Get(info.Kind)
	if !ok {
		return nil, &forge.UnsupportedForgeError{Kind: info.Kind}
	}

	token, ok := platform.ResolveToken(ctx, info)
	if !ok {
		return nil, &forge.MissingTokenError{Kind: info.Kind, Host: info.HostURL}
	}

	issues, err := platform.ListOpenIssues(ctx, info, token, max)
	if err != nil {
		return nil, err
	}

	// Cache even a partial (cancelled) result: the next fetch within the
	// TTL serves it, and a refresh invalidates it.
	b.issues.Set(key, issues)

	log.Ctx(ctx).Info().
		Str("repo", key).
		Int("count", len(issues)).
		Msg("fetched open issues")

	return issues, nil
}

// Invalidate drops the cached state for one remote, forcing the next call to
// re-parse and re-fetch.
func (b *Bridge) Invalidate(ctx context.Context, remoteURL string) error {
	info, ok := remote.Parse(remoteURL)
	if !ok {
		return ErrUnrecognizedRemote
	}

	b.repos.Delete(remoteURL)
	b.issues.Delete(issueKey(info))
	return nil
}

// ClearAll drops every cached repo identity and issue list.
func (b *Bridge) ClearAll() {
	b.repos.Clear()
	b.issues.Clear()
}

// Close releases the Bridge's caches. The registry is owned by the caller
// and is not touched.
func (b *Bridge) Close() error {
	return errors.Join(b.repos.Close(), b.issues.Close())
}

func issueKey(info forge.RepoInfo) string {
	return string(info.Kind) + "/" + info.Slug()
}

func truncate(issues []forge.Issue, max int) []forge.Issue {
	if len(issues) > max {
		return issues[:max]
	}
	return issues
}
