package util

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/config"
	"realestate/internal/domain"
	"realestate/internal/testutil"
)

var authCfg = config.AuthConfig{
	SecretKey:          "test-secret-key-with-at-least-32-characters",
	TokenExpiryMinutes: 30,
	Algorithm:          "HS256",
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("corretora123")
	require.NoError(t, err)
	assert.NotEqual(t, "corretora123", hash)
	assert.True(t, CheckPasswordHash("corretora123", hash))
	assert.False(t, CheckPasswordHash("corretora124", hash))
	assert.False(t, CheckPasswordHash("corretora123", "not-a-hash"))
}

func TestTokenRoundTrip(t *testing.T) {
	db := testutil.NewDB(t)
	user := &domain.User{Username: "maria", Email: "maria@premium.com", HashedPassword: "x", IsActive: true, IsStaff: true}
	require.NoError(t, db.Create(user).Error)

	token, err := GenerateToken(authCfg, user)
	require.NoError(t, err)

	claims, err := ValidateToken(authCfg, token)
	require.NoError(t, err)
	assert.Equal(t, "maria", claims.Username)
	assert.True(t, claims.IsStaff)
	assert.False(t, claims.IsAdmin)

	loaded, err := GetUserFromToken(db, claims)
	require.NoError(t, err)
	assert.Equal(t, user.ID, loaded.ID)

	_, err = GetUserFromToken(db, &Claims{Username: "ghost"})
	assert.Error(t, err)
}

func TestValidateTokenRejects(t *testing.T) {
	user := &domain.User{Username: "maria"}

	expiredCfg := authCfg
	expiredCfg.TokenExpiryMinutes = -1
	expired, err := GenerateToken(expiredCfg, user)
	require.NoError(t, err)
	_, err = ValidateToken(authCfg, expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	otherCfg := authCfg
	otherCfg.SecretKey = "another-secret-key-with-32-characters!!"
	forged, err := GenerateToken(otherCfg, user)
	require.NoError(t, err)
	_, err = ValidateToken(authCfg, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ValidateToken(authCfg, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "maria"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ValidateToken(authCfg, unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNormalizeIdentifier(t *testing.T) {
	assert.Equal(t, "ana@example.com", NormalizeIdentifier("  Ana@Example.COM "))
	assert.Equal(t, "5511988887777", NormalizeIdentifier("+55 (11) 98888-7777"))
}

// clock is a settable time source for the limiter
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestLimiter(limit int) (*RateLimiter, *clock) {
	c := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(limit, time.Minute)
	l.now = c.Now
	return l, c
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	l, c := newTestLimiter(2)

	require.NoError(t, l.Allow("ip:1.2.3.4"))
	c.now = c.now.Add(20 * time.Second)
	require.NoError(t, l.Allow("ip:1.2.3.4"))

	err := l.Allow("ip:1.2.3.4")
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 40*time.Second, rle.RetryAfter)

	// The first request leaves the window
	c.now = c.now.Add(41 * time.Second)
	assert.NoError(t, l.Allow("ip:1.2.3.4"))
}

func TestRateLimiterRejectionRecordsNothing(t *testing.T) {
	l, _ := newTestLimiter(1)

	require.NoError(t, l.Allow("ip:a", "phone:1"))
	// ip:b is fresh, but phone:1 is exhausted
	assert.Error(t, l.Allow("ip:b", "phone:1"))
	assert.NoError(t, l.Allow("ip:b"))
}

func TestRateLimiterIgnoresEmptyAndDuplicateKeys(t *testing.T) {
	l, _ := newTestLimiter(1)

	assert.NoError(t, l.Allow("", "k", "k"))
	assert.Error(t, l.Allow("k"))
	assert.NoError(t, l.Allow(""))
}

func TestRateLimiterDisabled(t *testing.T) {
	l, _ := newTestLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Allow("k"))
	}

	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Allow("k"))
	assert.NotPanics(t, nilLimiter.Sweep)
}

func TestRateLimiterSweep(t *testing.T) {
	l, c := newTestLimiter(5)
	require.NoError(t, l.Allow("old"))
	c.now = c.now.Add(50 * time.Second)
	require.NoError(t, l.Allow("recent"))
	c.now = c.now.Add(20 * time.Second)

	l.Sweep()
	assert.NotContains(t, l.requests, "old")
	assert.Contains(t, l.requests, "recent")
}
