// Package baseurl computes the backend endpoint from configuration and the
// page origin. Resolution is pure and runs exactly once at client
// construction; the resolved value is immutable for the process lifetime.
package baseurl

import (
	"fmt"
	"os"
	"strings"
)

// DefaultDevPort is the backend port assumed in development builds.
const DefaultDevPort = "3000"

// HostPlaceholder marks where the page hostname is substituted in overrides.
const HostPlaceholder = "{host}"

// Config carries the resolver inputs, all read once at startup.
type Config struct {
	OverrideURL  string // literal URL, "auto", or a {host} template
	OverridePort string // port-only override, optional leading ":"
	DevMode      bool
}

// ConfigFromEnv reads VOTE_API_BASE_URL, VOTE_API_PORT and VOTE_DEV_MODE.
func ConfigFromEnv() Config {
	return Config{
		OverrideURL:  strings.TrimSpace(os.Getenv("VOTE_API_BASE_URL")),
		OverridePort: strings.TrimSpace(os.Getenv("VOTE_API_PORT")),
		DevMode:      isTruthy(os.Getenv("VOTE_DEV_MODE")),
	}
}

// Page is the current page context. Zero value means no page exists.
type Page struct {
	Scheme   string
	Hostname string
	Port     string
}

func (p Page) orDefaults() Page {
	if p.Scheme == "" {
		p.Scheme = "http"
	}
	if p.Hostname == "" {
		p.Hostname = "localhost"
	}
	return p
}

// rule is one step of the resolution cascade. It returns the resolved
// endpoint and true when it applies; the first applying rule wins.
type rule struct {
	name  string
	apply func(cfg Config, page Page) (string, bool)
}

var cascade = []rule{
	{"override-host-template", func(cfg Config, page Page) (string, bool) {
		if cfg.OverrideURL == "" || !strings.Contains(cfg.OverrideURL, HostPlaceholder) {
			return "", false
		}
		v := strings.ReplaceAll(cfg.OverrideURL, HostPlaceholder, page.Hostname)
		return strings.TrimRight(v, "/"), true
	}},
	{"override-literal", func(cfg Config, page Page) (string, bool) {
		if cfg.OverrideURL == "" {
			return "", false
		}
		return strings.TrimRight(cfg.OverrideURL, "/"), true
	}},
	{"override-port", func(cfg Config, page Page) (string, bool) {
		if cfg.OverridePort == "" {
			return "", false
		}
		port := strings.TrimPrefix(cfg.OverridePort, ":")
		return EnsureAPIPath(fmt.Sprintf("%s://%s:%s", page.Scheme, page.Hostname, port)), true
	}},
	{"dev-mode", func(cfg Config, page Page) (string, bool) {
		if !cfg.DevMode {
			return "", false
		}
		return EnsureAPIPath(fmt.Sprintf("%s://%s:%s", page.Scheme, page.Hostname, DefaultDevPort)), true
	}},
	{"page-origin", func(cfg Config, page Page) (string, bool) {
		origin := fmt.Sprintf("%s://%s", page.Scheme, page.Hostname)
		if page.Port != "" {
			origin += ":" + page.Port
		}
		return EnsureAPIPath(origin), true
	}},
}

// Resolve runs the cascade. An "auto" override is cleared first so the
// auto-detection rules take over.
func Resolve(cfg Config, page Page) string {
	if strings.EqualFold(cfg.OverrideURL, "auto") {
		cfg.OverrideURL = ""
	}
	page = page.orDefaults()
	for _, r := range cascade {
		if v, ok := r.apply(cfg, page); ok {
			return v
		}
	}
	// Unreachable: the page-origin rule always applies.
	return EnsureAPIPath("")
}

// EnsureAPIPath appends the "/api" path segment unless the value already ends
// with one (case-insensitive). A value that was only separators collapses to
// the root API path.
func EnsureAPIPath(base string) string {
	sanitized := strings.TrimRight(base, "/")
	if sanitized == "" || sanitized == "." {
		return "/api"
	}
	if strings.HasSuffix(strings.ToLower(sanitized), "/api") {
		return sanitized
	}
	return sanitized + "/api"
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
