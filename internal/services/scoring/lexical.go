package scoring

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"

	"trustscan/internal/urlnorm"
)

var suspiciousKeywords = []string{
	"verify", "account", "suspended", "confirm", "login", "update",
	"secure", "banking", "paypal", "ebay", "amazon", "prize", "winner",
	"urgent", "act-now", "limited-time", "free-money", "click-here",
}

var suspiciousTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "gq": true, "xyz": true,
}

// maxSubdomainLabels is the number of labels allowed in front of the
// registrable domain before the host counts as over-nested.
const maxSubdomainLabels = 2

// LexicalPatterns inspects the URL text itself. Results are sorted in a
// fixed order so identical input always reports identical patterns.
func LexicalPatterns(n urlnorm.NormalizedURL) []string {
	host := n.Hostname()
	text := strings.ToLower(host + n.Path)

	patterns := []string{}
	for _, kw := range suspiciousKeywords {
		if strings.Contains(text, kw) {
			patterns = append(patterns, kw)
		}
	}

	if net.ParseIP(host) != nil {
		return append(patterns, "ip-address-domain")
	}

	suffix, _ := publicsuffix.PublicSuffix(host)
	if suspiciousTLDs[suffix] {
		patterns = append(patterns, "suspicious-tld")
	}

	if registrable, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		sub := strings.TrimSuffix(strings.TrimSuffix(host, registrable), ".")
		if sub != "" && strings.Count(sub, ".")+1 > maxSubdomainLabels {
			patterns = append(patterns, "excessive-subdomains")
		}
	}
	return patterns
}
