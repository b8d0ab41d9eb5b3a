// Package urlnorm canonicalises user-supplied URLs and bare domains into the
// form used for cache keys and scoring.
package urlnorm

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"trustscan/internal/domain"
)

// NormalizedURL is the canonical form of a scan target.
type NormalizedURL struct {
	Scheme string
	Host   string // lower-case hostname, plus port when non-default
	Path   string
	Raw    string
}

// String renders the canonical scheme://host/path form. It is the cache key
// and normalises back to itself.
func (n NormalizedURL) String() string {
	return n.Scheme + "://" + n.Host + n.Path
}

// Hostname returns the host without any port.
func (n NormalizedURL) Hostname() string {
	if h, _, err := net.SplitHostPort(n.Host); err == nil {
		return h
	}
	return n.Host
}

// Port returns the explicit port or the scheme default.
func (n NormalizedURL) Port() string {
	if _, p, err := net.SplitHostPort(n.Host); err == nil {
		return p
	}
	return defaultPorts[n.Scheme]
}

// Equal compares canonical fields only; Raw is informational.
func (n NormalizedURL) Equal(o NormalizedURL) bool {
	return n.Scheme == o.Scheme && n.Host == o.Host && n.Path == o.Path
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// MaxLength bounds accepted input.
const MaxLength = 2048

// Normalize parses raw into a NormalizedURL. Inputs without a scheme are
// accepted when they look like a domain and are assumed to be https.
func Normalize(raw string) (NormalizedURL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return NormalizedURL{}, invalid("URL is required")
	}
	if len(trimmed) > MaxLength {
		return NormalizedURL{}, invalid("URL exceeds maximum length")
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return NormalizedURL{}, invalid("URL contains whitespace")
	}

	candidate := trimmed
	if !hasScheme(trimmed) {
		if !looksLikeDomain(trimmed) {
			return NormalizedURL{}, invalid("Invalid URL format")
		}
		candidate = "https://" + trimmed
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return NormalizedURL{}, invalid("Invalid URL format")
	}
	scheme := strings.ToLower(u.Scheme)
	if _, ok := defaultPorts[scheme]; !ok {
		return NormalizedURL{}, invalid("unsupported scheme " + scheme)
	}
	if u.User != nil {
		return NormalizedURL{}, invalid("credentials in URL are not allowed")
	}

	hostname, ok := asciiHost(u.Hostname())
	if !ok || !validHostname(hostname) {
		return NormalizedURL{}, invalid("URL must contain a valid domain")
	}
	host := hostname
	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		host = net.JoinHostPort(hostname, port)
	}

	path := u.EscapedPath()
	if strings.Trim(path, "/") == "" {
		path = ""
	}

	return NormalizedURL{Scheme: scheme, Host: host, Path: path, Raw: trimmed}, nil
}

func invalid(msg string) error {
	return domain.Invalid(domain.ErrInvalidURL, msg)
}

func hasScheme(s string) bool {
	i := strings.Index(s, "://")
	if i <= 0 {
		return false
	}
	for _, r := range s[:i] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

// looksLikeDomain checks the host-ish prefix of a scheme-less input.
func looksLikeDomain(s string) bool {
	host := s
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	ascii, ok := asciiHost(host)
	return ok && validHostname(ascii)
}

// asciiHost lower-cases h and converts internationalised labels to punycode.
func asciiHost(h string) (string, bool) {
	h = strings.TrimSuffix(strings.ToLower(h), ".")
	ascii, err := idna.Lookup.ToASCII(h)
	if err != nil {
		return "", false
	}
	return ascii, true
}

// validHostname requires at least two non-empty labels of [a-z0-9-] that do
// not start or end with a hyphen.
func validHostname(h string) bool {
	if h == "" || len(h) > 253 {
		return false
	}
	labels := strings.Split(h, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" || len(l) > 63 || l[0] == '-' || l[len(l)-1] == '-' {
			return false
		}
		for _, r := range l {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	return true
}
