package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettings_EmptyPath(t *testing.T) {
	settings, err := LoadSettings("")

	require.NoError(t, err)
	assert.Equal(t, Settings{}, settings)
}

func TestLoadSettings_MissingFileIsNotAnError(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Settings{}, settings)
}

func TestLoadSettings_ParsesTokens(t *testing.T) {
	path := writeSettings(t, `
tokens:
  github: gh-token
  gitlab: gl-token
  gitee: ge-token
  local-gitlab: local-token
hosts:
  git.example.com: host-token
`)

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "gh-token", settings.Tokens.GitHub)
	assert.Equal(t, "gl-token", settings.Tokens.GitLab)
	assert.Equal(t, "ge-token", settings.Tokens.Gitee)
	assert.Equal(t, "local-token", settings.Tokens.LocalGitLab)

	token, ok := settings.HostToken("git.example.com")
	assert.True(t, ok)
	assert.Equal(t, "host-token", token)
}

func TestLoadSettings_MalformedFile(t *testing.T) {
	path := writeSettings(t, "tokens: [not: a: mapping")

	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestHostToken_CanonicalKeyWins(t *testing.T) {
	settings := Settings{
		Hosts:       map[string]string{"git.example.com": "canonical"},
		HostTokens:  map[string]string{"git.example.com": "alias-one"},
		GitLabHosts: map[string]string{"git.example.com": "alias-two"},
	}

	token, ok := settings.HostToken("git.example.com")
	assert.True(t, ok)
	assert.Equal(t, "canonical", token)
}

func TestHostToken_DeprecatedAliasesStillResolve(t *testing.T) {
	settings := Settings{
		HostTokens:  map[string]string{"one.example.com": "alias-one"},
		GitLabHosts: map[string]string{"two.example.com": "alias-two"},
	}

	token, ok := settings.HostToken("one.example.com")
	assert.True(t, ok)
	assert.Equal(t, "alias-one", token)

	token, ok = settings.HostToken("two.example.com")
	assert.True(t, ok)
	assert.Equal(t, "alias-two", token)
}

func TestHostToken_UnknownHost(t *testing.T) {
	settings := Settings{Hosts: map[string]string{"git.example.com": "token"}}

	_, ok := settings.HostToken("other.example.com")
	assert.False(t, ok)
}
