package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Settings is the editor-managed settings file. It carries the explicit
// access tokens: one per forge, plus host-specific tokens for self-hosted
// instances.
//
// The canonical host-token shape is the "hosts" map, keyed by hostname.
// Earlier releases probed several differently shaped keys; those are still
// read as deprecated aliases but log a warning when they supply a token.
type Settings struct {
	Tokens SettingsTokens    `yaml:"tokens"`
	Hosts  map[string]string `yaml:"hosts"`

	// Deprecated: use Hosts.
	HostTokens map[string]string `yaml:"host_tokens"`
	// Deprecated: use Hosts.
	GitLabHosts map[string]string `yaml:"gitlab_hosts"`
}

// SettingsTokens holds the per-forge explicit tokens.
type SettingsTokens struct {
	GitHub      string `yaml:"github"`
	GitLab      string `yaml:"gitlab"`
	Gitee       string `yaml:"gitee"`
	LocalGitLab string `yaml:"local-gitlab"`
}

// LoadSettings reads the settings file at path. A missing file (or an empty
// path) is not an error: the editor may never have written one, and token
// resolution simply falls through to the environment.
func LoadSettings(path string) (Settings, error) {
	var settings Settings

	if path == "" {
		return settings, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("could not read settings file: %w", err)
	}

	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return settings, fmt.Errorf("could not parse settings file %s: %w", path, err)
	}

	return settings, nil
}

// HostToken looks up the token configured for a specific hostname. The
// canonical "hosts" key wins; the deprecated alias keys are consulted
// afterwards, in the order they were introduced historically.
func (s Settings) HostToken(host string) (string, bool) {
	if token, ok := s.Hosts[host]; ok && token != "" {
		return token, true
	}

	aliases := []struct {
		name string
		m    map[string]string
	}{
		{"host_tokens", s.HostTokens},
		{"gitlab_hosts", s.GitLabHosts},
	}
	for _, alias := range aliases {
		if token, ok := alias.m[host]; ok && token != "" {
			log.Warn().
				Str("host", host).
				Str("key", alias.name).
				Msg("settings key is deprecated, move this token to \"hosts\"")
			return token, true
		}
	}

	return "", false
}
