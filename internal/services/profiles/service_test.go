package profiles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustscan/internal/adapters/memory"
	"trustscan/internal/domain"
)

func TestGetLatest(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, score := range []int{10, 30, 50} {
		require.NoError(t, store.Save(ctx, &domain.ScanResult{
			ID:         string(rune('a' + i)),
			Assessment: domain.Assessment{Domain: "shop.example.com", RiskScore: score},
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}
	svc := New(store)

	prof, err := svc.GetLatest(ctx, "Shop.Example.com.")
	require.NoError(t, err)
	assert.Equal(t, 3, prof.ScanCount)
	assert.InDelta(t, 30.0, prof.AverageRisk, 0.001)
	assert.Equal(t, "c", prof.LatestScan.ID)
	assert.Equal(t, base, prof.FirstScanned)

	_, err = svc.GetLatest(ctx, "never.example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
