package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustscan/internal/domain"
)

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokens("s3cret", nil)
	tok, err := tokens.Issue(&domain.User{ID: "u1", Email: "a@b.co", Role: domain.RoleAdmin})
	require.NoError(t, err)

	id, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "a@b.co", id.Email)
	assert.True(t, id.IsAdmin())
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	tokens := NewTokens("s3cret", nil)
	other := NewTokens("other", nil)
	tok, err := other.Issue(&domain.User{ID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"wrong secret": tok,
		"garbage":      "not.a.token",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Verify(raw)
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestTokenExpiresAfterSevenDays(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	tokens := NewTokens("s3cret", clock)
	tok, err := tokens.Issue(&domain.User{ID: "u1"})
	require.NoError(t, err)

	clock.Advance(TokenTTL - time.Minute)
	_, err = tokens.Verify(tok)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = tokens.Verify(tok)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	for _, h := range []string{"", "Bearer ", "Basic abc", "abc"} {
		_, ok := BearerToken(h)
		assert.False(t, ok, h)
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	ctx := WithIdentity(context.Background(), Identity{UserID: "u1"})
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
