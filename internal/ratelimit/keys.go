package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// KeyFunc derives a stable client key from a request. userID is empty for
// anonymous callers.
type KeyFunc func(r *http.Request, userID string) string

// ByIP keys on the connection's remote address. Forwarding headers are
// only honoured when the router rewrites RemoteAddr from them, which the
// HTTP adapter does behind TRUST_PROXY.
func ByIP(r *http.Request, _ string) string {
	return "ip:" + ClientIP(r)
}

// ByUser keys authenticated callers on their user id and falls back to ByIP.
func ByUser(r *http.Request, userID string) string {
	if userID != "" {
		return "user:" + userID
	}
	return ByIP(r, "")
}

// KeyStrategy resolves a configured strategy name.
func KeyStrategy(name string) (KeyFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ip":
		return ByIP, nil
	case "user":
		return ByUser, nil
	default:
		return nil, errors.Errorf("unknown rate limit key strategy %q", name)
	}
}

func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
