package ports

import (
	"context"

	"trustscan/internal/domain"
)

// ScanRepository stores scan records. Get returns domain.ErrNotFound for
// unknown ids.
type ScanRepository interface {
	Save(ctx context.Context, scan *domain.ScanResult) error
	Get(ctx context.Context, id string) (*domain.ScanResult, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.ScanResult, error)
	List(ctx context.Context, offset, limit int) ([]domain.ScanResult, int, error)
	ListByDomain(ctx context.Context, domainName string) ([]domain.ScanResult, error)
	Stats(ctx context.Context) (domain.ScanStats, error)
}

// ReportRepository stores fraud reports.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.FraudReport) error
	Count(ctx context.Context) (int, error)
}

// UserRepository stores accounts. Create returns domain.ErrEmailTaken on a
// duplicate email; lookups return domain.ErrNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Count(ctx context.Context) (int, error)
}
