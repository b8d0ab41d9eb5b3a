// Package scoring turns probe outputs and local URL signals into a risk
// score and trust rating.
package scoring

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
	"trustscan/internal/urlnorm"
)

// Weights. The sum exceeds 100 and the total is clamped.
const (
	WeightNoTLS          = 25
	WeightSSLUnknown     = 20
	WeightWeakProtocol   = 10
	WeightVeryNewDomain  = 30
	WeightNewDomain      = 15
	WeightDomainUnknown  = 15
	WeightBlocklisted    = 40
	WeightLexicalPattern = 5
	MaxLexicalWeight     = 15

	veryNewDomainDays = 90
	newDomainDays     = 365
)

type Options struct {
	ProbeTimeout time.Duration
	Budget       time.Duration
	Blocklist    *Blocklist
	Clock        clockwork.Clock
	Logger       zerolog.Logger
}

// Pipeline gathers signals concurrently and combines them. It is safe for
// concurrent use.
type Pipeline struct {
	ssl       ports.SSLProbe
	registry  ports.DomainProbe
	blocklist *Blocklist
	timeout   time.Duration
	budget    time.Duration
	clock     clockwork.Clock
	log       zerolog.Logger
}

func New(ssl ports.SSLProbe, registry ports.DomainProbe, opts Options) *Pipeline {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.Budget <= 0 || opts.Budget < opts.ProbeTimeout {
		opts.Budget = opts.ProbeTimeout + time.Second
	}
	if opts.Blocklist == nil {
		opts.Blocklist = NewBlocklist(DefaultBlocklist)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		ssl:       ssl,
		registry:  registry,
		blocklist: opts.Blocklist,
		timeout:   opts.ProbeTimeout,
		budget:    opts.Budget,
		clock:     opts.Clock,
		log:       opts.Logger.With().Str("component", "scoring").Logger(),
	}
}

// Inputs are everything the score depends on.
type Inputs struct {
	HTTPS       bool
	SSL         Signal[domain.SSLInfo]
	Domain      Signal[domain.DomainInfo]
	Blocklisted bool
	Patterns    []string
}

var _ ports.Scorer = (*Pipeline)(nil)

func (p *Pipeline) Score(ctx context.Context, target urlnorm.NormalizedURL) domain.Assessment {
	ctx, cancel := context.WithTimeout(ctx, p.budget)
	defer cancel()

	in := Inputs{HTTPS: target.Scheme == "https"}
	hostname := target.Hostname()

	var wg conc.WaitGroup
	if in.HTTPS {
		wg.Go(func() {
			in.SSL = runProbe(ctx, p.timeout, func(ctx context.Context) (domain.SSLInfo, error) {
				return p.ssl.ProbeSSL(ctx, target)
			})
		})
	} else {
		in.SSL = Ok(domain.SSLInfo{Status: domain.ProbeOK, Message: "No SSL certificate (HTTP only)"})
	}
	wg.Go(func() {
		in.Domain = runProbe(ctx, p.timeout, func(ctx context.Context) (domain.DomainInfo, error) {
			return p.registry.ProbeDomain(ctx, hostname)
		})
	})
	listed, sources := p.blocklist.Match(hostname)
	in.Blocklisted = listed
	in.Patterns = LexicalPatterns(target)
	wg.Wait()

	if _, ok := in.SSL.Get(); !ok {
		p.log.Debug().Str("host", hostname).Str("reason", in.SSL.Reason()).Msg("ssl probe degraded")
	}
	if _, ok := in.Domain.Get(); !ok {
		p.log.Debug().Str("host", hostname).Str("reason", in.Domain.Reason()).Msg("domain probe degraded")
	}

	score := Compute(in)
	return domain.Assessment{
		CanonicalURL: target.String(),
		Domain:       hostname,
		RiskScore:    score,
		TrustRating:  RatingFor(score),
		SSLInfo:      sslInfo(in.SSL),
		DomainInfo:   domainInfo(in.Domain),
		Blocklist:    domain.BlocklistInfo{Listed: listed, Sources: sources},
		Lexical:      domain.LexicalInfo{Patterns: in.Patterns},
		ScoredAt:     p.clock.Now().UTC(),
	}
}

// Compute is the deterministic scoring function. Every signal handles both
// the known and the unknown arm.
func Compute(in Inputs) int {
	score := 0

	if ssl, ok := in.SSL.Get(); !in.HTTPS {
		score += WeightNoTLS
	} else if !ok {
		score += WeightSSLUnknown
	} else if !ssl.Valid {
		score += WeightNoTLS
	} else if ssl.Protocol != nil && weakProtocol(*ssl.Protocol) {
		score += WeightWeakProtocol
	}

	if info, ok := in.Domain.Get(); !ok || info.AgeInDays == nil {
		score += WeightDomainUnknown
	} else if *info.AgeInDays < veryNewDomainDays {
		score += WeightVeryNewDomain
	} else if *info.AgeInDays < newDomainDays {
		score += WeightNewDomain
	}

	if in.Blocklisted {
		score += WeightBlocklisted
	}

	score += min(len(in.Patterns)*WeightLexicalPattern, MaxLexicalWeight)

	return clamp(score)
}

func weakProtocol(p string) bool {
	switch p {
	case "TLS 1.0", "TLS 1.1", "SSL 3.0":
		return true
	}
	return false
}

func sslInfo(s Signal[domain.SSLInfo]) domain.SSLInfo {
	if v, ok := s.Get(); ok {
		return v
	}
	return domain.SSLInfo{Status: domain.ProbeUnknown, Message: s.Reason()}
}

func domainInfo(s Signal[domain.DomainInfo]) domain.DomainInfo {
	if v, ok := s.Get(); ok {
		return v
	}
	return domain.DomainInfo{Status: domain.ProbeUnknown, Message: s.Reason()}
}
