package ports

import (
	"context"
	"time"

	"trustscan/internal/domain"
	"trustscan/internal/urlnorm"
)

// SSLProbe reports the TLS posture of the target host.
type SSLProbe interface {
	ProbeSSL(ctx context.Context, target urlnorm.NormalizedURL) (domain.SSLInfo, error)
}

// DomainProbe reports registration data for a hostname.
type DomainProbe interface {
	ProbeDomain(ctx context.Context, hostname string) (domain.DomainInfo, error)
}

// Scorer produces an assessment for a canonical URL. It never fails.
type Scorer interface {
	Score(ctx context.Context, target urlnorm.NormalizedURL) domain.Assessment
}

// ResultStore is the backing store of the result cache. Errors are treated
// by callers as a miss.
type ResultStore interface {
	Get(ctx context.Context, key string) (domain.Assessment, bool, error)
	Put(ctx context.Context, key string, value domain.Assessment, ttl time.Duration) error
	Purge(ctx context.Context) error
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or rejects events per client key within a rolling window.
type Limiter interface {
	Admit(ctx context.Context, clientKey string) (Decision, error)
}
