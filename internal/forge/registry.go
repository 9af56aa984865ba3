package forge

import (
	"errors"
	"time"

	"github.com/commitfmt/commitfmt-bridge/internal/config"
	"github.com/commitfmt/commitfmt-bridge/internal/httpclient"
)

// Options configures the platforms a registry constructs.
type Options struct {
	TokenTTL       time.Duration
	TokenCacheSize int
	RequestTimeout time.Duration
	MaxRetries     int
}

// Registry maps each forge kind to its platform. It is built once at
// startup with the shared HTTP client injected, and owns the platforms it
// creates.
type Registry struct {
	platforms map[Kind]Platform
}

// NewRegistry constructs one platform per supported forge kind.
func NewRegistry(client *httpclient.Client, creds config.Credentials, opts Options) (*Registry, error) {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.TokenCacheSize <= 0 {
		opts.TokenCacheSize = 32
	}

	github, err := NewGitHub(client, creds, opts)
	if err != nil {
		return nil, err
	}
	gitlab, err := NewGitLab(client, creds, opts)
	if err != nil {
		return nil, err
	}
	localGitlab, err := NewLocalGitLab(client, creds, opts)
	if err != nil {
		return nil, err
	}
	gitee, err := NewGitee(client, creds, opts)
	if err != nil {
		return nil, err
	}

	return &Registry{
		platforms: map[Kind]Platform{
			KindGitHub:      github,
			KindGitLab:      gitlab,
			KindLocalGitLab: localGitlab,
			KindGitee:       gitee,
		},
	}, nil
}

// Get returns the platform for kind, or false when the kind is unknown.
func (r *Registry) Get(kind Kind) (Platform, bool) {
	p, ok := r.platforms[kind]
	return p, ok
}

// Close closes every registered platform, collecting any failures.
func (r *Registry) Close() error {
	var errs []error
	for _, p := range r.platforms {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
