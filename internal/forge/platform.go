package forge

import (
	"context"
	"errors"
	"time"

	"github.com/commitfmt/commitfmt-bridge/internal/cache"
	"github.com/commitfmt/commitfmt-bridge/internal/config"
	"github.com/commitfmt/commitfmt-bridge/internal/httpclient"
)

// maxPageSize is the largest page any supported forge accepts.
const maxPageSize = 50

// platform holds what every forge implementation shares: the pooled HTTP
// client, the configured token sources, and a private cache of resolved
// tokens keyed by (kind, host).
type platform struct {
	client  *httpclient.Client
	creds   config.Credentials
	tokens  *cache.Cache[string]
	timeout time.Duration
	retries int
}

func newPlatform(client *httpclient.Client, creds config.Credentials, opts Options) (platform, error) {
	tokens, err := cache.New[string](opts.TokenTTL, opts.TokenCacheSize)
	if err != nil {
		return platform{}, err
	}

	return platform{
		client:  client,
		creds:   creds,
		tokens:  tokens,
		timeout: opts.RequestTimeout,
		retries: opts.MaxRetries,
	}, nil
}

// cachedToken memoises resolve per (kind, host). Only successful resolutions
// are cached: a missing token should be re-checked on the next call, since
// the user may have configured one in the meantime.
func (p *platform) cachedToken(repo RepoInfo, resolve func() (string, bool)) (string, bool) {
	key := string(repo.Kind) + "|" + repo.HostURL

	if token, ok := p.tokens.Get(key); ok {
		return token, true
	}

	token, ok := resolve()
	if !ok {
		return "", false
	}

	p.tokens.Set(key, token)
	return token, true
}

func (p *platform) close() error {
	return p.tokens.Close()
}

// collectIssues drives the shared pagination loop. Pages are requested
// strictly sequentially: the termination condition depends on the size of
// the previous page. fetch is called with 1-based page numbers.
//
// Cancellation is cooperative: when ctx is cancelled the loop stops paging
// and returns whatever was accumulated, without error.
func collectIssues(ctx context.Context, max int, fetch func(ctx context.Context, page, perPage int) ([]Issue, error)) ([]Issue, error) {
	if max <= 0 {
		return nil, nil
	}

	perPage := max
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	var issues []Issue
	for page := 1; ; page++ {
		if ctx.Err() != nil {
			return issues, nil
		}

		batch, err := fetch(ctx, page, perPage)
		if err != nil {
			// A cancellation that interrupted the request in flight is
			// treated the same as one caught between pages.
			if errors.Is(err, context.Canceled) {
				return issues, nil
			}
			return nil, err
		}

		issues = append(issues, batch...)

		// A short or empty page is the last page.
		if len(issues) >= max || len(batch) < perPage {
			break
		}
	}

	if len(issues) > max {
		issues = issues[:max]
	}

	return issues, nil
}
