// Package remote classifies git remote URLs into a forge identity. It
// recognises the four remote syntaxes git produces in practice and decides,
// per host, which forge API the repository lives behind.
package remote

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/commitfmt/commitfmt-bridge/internal/forge"
)

// API bases for the public forges.
const (
	githubAPIBase = "https://api.github.com"
	gitlabAPIBase = "https://gitlab.com/api/v4"
	giteeAPIBase  = "https://gitee.com/api/v5"
)

// altSSHPort is the conventional alternate SSH port used by self-hosted
// GitLab installs. When a remote uses it, the web UI is assumed to run on the
// default port and the port is left out of the synthesized host URL.
const altSSHPort = "2222"

// capture holds the pieces a syntax pattern extracts from a raw remote URL.
type capture struct {
	scheme string // only set by the http(s) form
	host   string
	port   string
	owner  string
	repo   string
}

// syntax is one recognised remote URL shape. Patterns are tried in fixed
// order, most specific first: the bare SSH form with an explicit port would
// otherwise also be matched by the port-less one.
type syntax struct {
	pattern *regexp.Regexp
	extract func(groups []string) capture
}

var syntaxes = []syntax{
	// http(s)://host/owner/repo(.git)
	{
		pattern: regexp.MustCompile(`^(https?)://([^/]+)/([^/]+)/([^/]+?)(?:\.git)?/?$`),
		extract: func(g []string) capture {
			host, port := splitHostPort(g[2])
			return capture{scheme: g[1], host: host, port: port, owner: g[3], repo: g[4]}
		},
	},
	// ssh://git@host:port/owner/repo(.git)
	{
		pattern: regexp.MustCompile(`^ssh://git@([^/:]+):(\d+)/([^/]+)/([^/]+?)(?:\.git)?/?$`),
		extract: func(g []string) capture {
			return capture{host: g[1], port: g[2], owner: g[3], repo: g[4]}
		},
	},
	// git@host:owner/repo(.git) — classic SCP-like form
	{
		pattern: regexp.MustCompile(`^git@([^/:]+):([^/]+)/([^/]+?)(?:\.git)?/?$`),
		extract: func(g []string) capture {
			return capture{host: g[1], owner: g[2], repo: g[3]}
		},
	},
	// ssh://git@host/owner/repo(.git)
	{
		pattern: regexp.MustCompile(`^ssh://git@([^/:]+)/([^/]+)/([^/]+?)(?:\.git)?/?$`),
		extract: func(g []string) capture {
			return capture{host: g[1], owner: g[2], repo: g[3]}
		},
	},
}

// Parse classifies a git remote URL. It returns false when the URL matches
// none of the recognised syntaxes; the caller decides whether to prompt the
// user or abort.
func Parse(rawURL string) (forge.RepoInfo, bool) {
	raw := strings.TrimSpace(rawURL)

	for _, s := range syntaxes {
		groups := s.pattern.FindStringSubmatch(raw)
		if groups == nil {
			continue
		}

		return classify(s.extract(groups)), true
	}

	return forge.RepoInfo{}, false
}

// classify maps a captured host to a forge identity. Hosts that are not one
// of the public forges are treated as self-hosted GitLab-compatible
// instances.
func classify(c capture) forge.RepoInfo {
	info := forge.RepoInfo{Owner: c.owner, Repo: c.repo}

	switch {
	case strings.Contains(c.host, "github.com"):
		info.Kind = forge.KindGitHub
		info.APIBaseURL = githubAPIBase
		info.HostURL = "https://" + c.host
	case strings.Contains(c.host, "gitlab.com"):
		info.Kind = forge.KindGitLab
		info.APIBaseURL = gitlabAPIBase
		info.HostURL = "https://" + c.host
	case strings.Contains(c.host, "gitee.com"):
		info.Kind = forge.KindGitee
		info.APIBaseURL = giteeAPIBase
		info.HostURL = "https://" + c.host
	default:
		info.Kind = forge.KindLocalGitLab
		info.HostURL = selfHostedURL(c)
		info.APIBaseURL = info.HostURL + "/api/v4"
	}

	return info
}

// selfHostedURL synthesizes the web UI URL for a self-hosted host. SSH
// remotes carry no usable scheme, so one is chosen heuristically: plain http
// for localhost and private-range addresses, https otherwise.
func selfHostedURL(c capture) string {
	scheme := c.scheme
	fromSSH := scheme == ""
	if fromSSH {
		scheme = "https"
		if privateHost(c.host) {
			scheme = "http"
		}
	}

	// The alternate-port elision only applies to SSH remotes: an http(s)
	// remote names the web port directly.
	if c.port != "" && !(fromSSH && c.port == altSSHPort) {
		return fmt.Sprintf("%s://%s:%s", scheme, c.host, c.port)
	}

	return scheme + "://" + c.host
}

// privateHost reports whether the host is localhost or a private-range IPv4
// address (10/8, 172.16/12, 192.168/16).
func privateHost(host string) bool {
	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	return ip.IsLoopback() || ip.IsPrivate()
}

func splitHostPort(hostport string) (host, port string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, ""
	}
	return host, port
}
