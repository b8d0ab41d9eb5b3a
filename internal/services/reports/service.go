package reports

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
	"trustscan/internal/validate"
)

const StatusPending = "pending"

type Input struct {
	URL         string `json:"url" validate:"required,url"`
	Reason      string `json:"reason" validate:"required"`
	Description string `json:"description" validate:"required,min=10"`
}

// Service records fraud reports filed by signed-in users.
type Service struct {
	reports ports.ReportRepository
	clock   clockwork.Clock
	log     zerolog.Logger
}

func New(reports ports.ReportRepository, clock clockwork.Clock, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{reports: reports, clock: clock, log: logger.With().Str("component", "reports").Logger()}
}

func (s *Service) File(ctx context.Context, userID string, in Input) (*domain.FraudReport, error) {
	in.URL = strings.TrimSpace(in.URL)
	in.Reason = strings.TrimSpace(in.Reason)
	in.Description = strings.TrimSpace(in.Description)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	report := &domain.FraudReport{
		ID:          uuid.NewString(),
		URL:         in.URL,
		Reason:      in.Reason,
		Description: in.Description,
		ReportedBy:  userID,
		Status:      StatusPending,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, errors.Wrap(err, "store report")
	}
	s.log.Info().Str("report_id", report.ID).Str("url", report.URL).Str("reason", report.Reason).Msg("fraud report filed")
	return report, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.reports.Count(ctx)
}
