package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
)

var (
	_ ports.ScanRepository   = (*Store)(nil)
	_ ports.ReportRepository = (*Reports)(nil)
	_ ports.UserRepository   = (*Users)(nil)
)

func scanAt(id, host string, at time.Time, by *string, rating domain.TrustRating) *domain.ScanResult {
	return &domain.ScanResult{
		ID:          id,
		URL:         "https://" + host,
		Assessment:  domain.Assessment{Domain: host, TrustRating: rating},
		CreatedAt:   at,
		RequestedBy: by,
	}
}

func TestScansListNewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice, bob := "alice", "bob"
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, scanAt("1", "a.com", base, &alice, domain.RatingTrusted)))
	require.NoError(t, s.Save(ctx, scanAt("2", "b.com", base.Add(time.Minute), &bob, domain.RatingMalicious)))
	require.NoError(t, s.Save(ctx, scanAt("3", "a.com", base.Add(2*time.Minute), &alice, domain.RatingNeutral)))
	require.NoError(t, s.Save(ctx, scanAt("4", "c.com", base.Add(3*time.Minute), nil, domain.RatingNeutral)))

	hist, err := s.ListByUser(ctx, alice, 50)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "3", hist[0].ID)
	assert.Equal(t, "1", hist[1].ID)

	page, total, err := s.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "3", page[0].ID)

	byDomain, err := s.ListByDomain(ctx, "A.com")
	require.NoError(t, err)
	assert.Len(t, byDomain, 2)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.RiskDistribution[domain.RatingNeutral])
	assert.Equal(t, 0, stats.RiskDistribution[domain.RatingSuspicious])

	page, _, err = s.List(ctx, -8, 2)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUsersRejectDuplicateEmail(t *testing.T) {
	users := NewStore().Users()
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &domain.User{ID: "u1", Email: "Ann@example.com"}))
	assert.ErrorIs(t, users.Create(ctx, &domain.User{ID: "u2", Email: "ann@EXAMPLE.com"}), domain.ErrEmailTaken)

	u, err := users.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
