package profiles

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
)

type Service struct {
	scans ports.ScanRepository
}

func New(scans ports.ScanRepository) *Service { return &Service{scans: scans} }

// GetLatest summarises every recorded scan of a host. It returns
// domain.ErrNotFound when the host was never scanned.
func (s *Service) GetLatest(ctx context.Context, host string) (*domain.DomainProfile, error) {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	scans, err := s.scans.ListByDomain(ctx, host)
	if err != nil {
		return nil, errors.Wrapf(err, "list scans for %s", host)
	}
	if len(scans) == 0 {
		return nil, domain.ErrNotFound
	}

	// scans are newest first
	latest := scans[0]
	prof := &domain.DomainProfile{
		Domain:       host,
		ScanCount:    len(scans),
		LatestScan:   &latest,
		FirstScanned: scans[len(scans)-1].CreatedAt,
	}
	total := 0
	for _, sc := range scans {
		total += sc.RiskScore
	}
	prof.AverageRisk = float64(total) / float64(len(scans))
	return prof, nil
}
