package scoring

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DefaultBlocklist seeds the local blocklist when none is configured.
var DefaultBlocklist = []string{
	"phishing-site.com",
	"scam-website.net",
	"fake-bank.com",
	"malicious-site.org",
}

const blocklistSource = "local blocklist"

// Blocklist matches hosts against listed domains and all their subdomains.
// It is immutable after construction and safe for concurrent use.
type Blocklist struct {
	entries map[string]struct{}
}

func NewBlocklist(domains []string) *Blocklist {
	b := &Blocklist{entries: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		d = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			b.entries[d] = struct{}{}
		}
	}
	return b
}

// Match reports whether host, or any parent of it down to its registrable
// domain, is listed. It returns the sources that listed it.
func (b *Blocklist) Match(host string) (bool, []string) {
	host = strings.ToLower(host)
	stop, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		stop = host
	}
	for h := host; ; {
		if _, ok := b.entries[h]; ok {
			return true, []string{blocklistSource}
		}
		if h == stop {
			break
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return false, []string{}
}
