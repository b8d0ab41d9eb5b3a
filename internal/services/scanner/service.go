package scanner

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"trustscan/internal/cache"
	"trustscan/internal/domain"
	"trustscan/internal/ports"
	"trustscan/internal/ratelimit"
	"trustscan/internal/urlnorm"
)

// HistoryLimit caps GET /history.
const HistoryLimit = 50

// Request is one scan submission. RequestedBy is nil for anonymous callers.
// Malformed carries a body decoding failure; it is returned only after the
// call has been admitted, so bad payloads still spend rate budget.
type Request struct {
	RawURL      string
	ClientKey   string
	RequestedBy *string
	Malformed   error
}

// Result is a minted scan record plus how its assessment was obtained.
type Result struct {
	Scan      domain.ScanResult
	Outcome   cache.Outcome
	Remaining int
}

type Options struct {
	// MaxURLLength tightens urlnorm.MaxLength when positive.
	MaxURLLength   int
	PersistTimeout time.Duration
	Clock          clockwork.Clock
	Logger         zerolog.Logger
}

// Service orchestrates a scan: rate limit, normalise, cache-or-score,
// persist.
type Service struct {
	limiter ports.Limiter
	results *cache.Cache
	scorer  ports.Scorer
	scans   ports.ScanRepository

	maxURLLength   int
	persistTimeout time.Duration
	clock          clockwork.Clock
	log            zerolog.Logger
}

func New(limiter ports.Limiter, results *cache.Cache, scorer ports.Scorer, scans ports.ScanRepository, opts Options) *Service {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 3 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{
		limiter:        limiter,
		results:        results,
		scorer:         scorer,
		scans:          scans,
		maxURLLength:   opts.MaxURLLength,
		persistTimeout: opts.PersistTimeout,
		clock:          opts.Clock,
		log:            opts.Logger.With().Str("component", "scanner").Logger(),
	}
}

// Scan runs the gates in order and returns the new scan record. Rejections
// are *ratelimit.RejectedError or an error matching domain.ErrInvalidURL.
func (s *Service) Scan(ctx context.Context, req Request) (*Result, error) {
	decision, err := s.limiter.Admit(ctx, req.ClientKey)
	if err != nil {
		s.log.Warn().Err(err).Str("client", req.ClientKey).Msg("rate limiter unavailable, admitting")
		decision = ports.Decision{Allowed: true}
	}
	if !decision.Allowed {
		return nil, &ratelimit.RejectedError{ResetAt: decision.ResetAt}
	}
	if req.Malformed != nil {
		return nil, req.Malformed
	}

	if s.maxURLLength > 0 && len(strings.TrimSpace(req.RawURL)) > s.maxURLLength {
		return nil, domain.Invalid(domain.ErrInvalidURL, "URL exceeds maximum length")
	}
	target, err := urlnorm.Normalize(req.RawURL)
	if err != nil {
		return nil, err
	}

	assessment, outcome, err := s.results.Get(ctx, target.String(), func(ctx context.Context) domain.Assessment {
		return s.scorer.Score(ctx, target)
	})
	if err != nil {
		return nil, errors.Wrap(err, "waiting for scan")
	}

	scan := domain.ScanResult{
		ID:          uuid.NewString(),
		URL:         target.Raw,
		Assessment:  assessment,
		CreatedAt:   s.clock.Now().UTC(),
		RequestedBy: req.RequestedBy,
	}
	s.persist(ctx, &scan)

	s.log.Info().
		Str("scan_id", scan.ID).
		Str("key", target.String()).
		Str("cache", string(outcome)).
		Int("risk_score", scan.RiskScore).
		Str("trust_rating", string(scan.TrustRating)).
		Msg("scan completed")

	return &Result{Scan: scan, Outcome: outcome, Remaining: decision.Remaining}, nil
}

// persist hands the record to the repository before the response goes out,
// so a lookup by id succeeds afterwards. Failures are logged, not returned.
func (s *Service) persist(ctx context.Context, scan *domain.ScanResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()
	if err := s.scans.Save(ctx, scan); err != nil {
		s.log.Error().Err(err).Str("scan_id", scan.ID).Msg("failed to store scan")
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.ScanResult, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.scans.Get(ctx, id)
}

// History lists the caller's most recent scans, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]domain.ScanResult, error) {
	scans, err := s.scans.ListByUser(ctx, userID, HistoryLimit)
	if err != nil {
		return nil, errors.Wrap(err, "list history")
	}
	return scans, nil
}

// ClearCache drops every cached assessment.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.results.Purge(ctx)
}

// Pagination describes one page of the admin scan listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// List pages through every stored scan, newest first. page is 1-based;
// limit is clamped to [1,100] and defaults to 20.
func (s *Service) List(ctx context.Context, page, limit int) ([]domain.ScanResult, Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	// keeps (page-1)*limit from overflowing
	if page > math.MaxInt/limit {
		page = math.MaxInt / limit
	}
	scans, total, err := s.scans.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, Pagination{}, errors.Wrap(err, "list scans")
	}
	return scans, Pagination{Page: page, Limit: limit, Total: total, Pages: (total + limit - 1) / limit}, nil
}

// Stats aggregates stored scans and returns the ten most recent.
func (s *Service) Stats(ctx context.Context) (domain.ScanStats, []domain.ScanResult, error) {
	stats, err := s.scans.Stats(ctx)
	if err != nil {
		return domain.ScanStats{}, nil, errors.Wrap(err, "scan stats")
	}
	recent, _, err := s.scans.List(ctx, 0, 10)
	if err != nil {
		return domain.ScanStats{}, nil, errors.Wrap(err, "recent scans")
	}
	return stats, recent, nil
}
