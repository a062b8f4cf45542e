package token

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

func newTestJWT(t *testing.T, ttl time.Duration) *JWTAuthority {
	t.Helper()
	a, err := NewJWTAuthority(JWTConfig{Secret: testSecret, Issuer: "planner-auth", TTL: ttl})
	require.NoError(t, err)
	return a
}

func TestNewJWTAuthority_RejectsShortSecret(t *testing.T) {
	_, err := NewJWTAuthority(JWTConfig{Secret: "short"})
	require.Error(t, err)
}

func TestNewJWTAuthority_DefaultTTL(t *testing.T) {
	a, err := NewJWTAuthority(JWTConfig{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, DefaultJWTTTL, a.ttl)
}

func TestJWT_IssueAndVerify(t *testing.T) {
	a := newTestJWT(t, 0)
	ctx := context.Background()

	issued, err := a.Issue(ctx, Subject{UserID: "u-1", Identity: "alice"})
	require.NoError(t, err)
	assert.Equal(t, KindJWT, issued.Kind)
	assert.Equal(t, 3, len(strings.Split(issued.Token, ".")))
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), issued.ExpiresAt, 5*time.Second)

	claims, err := a.Verify(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice", claims.Identity)
	assert.Equal(t, issued.ExpiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestJWT_IssueRequiresSubject(t *testing.T) {
	a := newTestJWT(t, 0)
	_, err := a.Issue(context.Background(), Subject{})
	require.Error(t, err)
}

func TestJWT_VerifyExpired(t *testing.T) {
	base := time.Now()
	a := newTestJWT(t, time.Hour).WithClock(func() time.Time { return base })

	issued, err := a.Issue(context.Background(), Subject{UserID: "u-1", Identity: "alice"})
	require.NoError(t, err)

	later := a.WithClock(func() time.Time { return base.Add(time.Hour + 5*time.Second) })
	_, err = later.Verify(context.Background(), issued.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestJWT_VerifyJustBeforeExpiry(t *testing.T) {
	base := time.Now()
	a := newTestJWT(t, time.Hour).WithClock(func() time.Time { return base })

	issued, err := a.Issue(context.Background(), Subject{UserID: "u-1"})
	require.NoError(t, err)

	later := a.WithClock(func() time.Time { return base.Add(time.Hour - 5*time.Second) })
	_, err = later.Verify(context.Background(), issued.Token)
	require.NoError(t, err)
}

func TestJWT_VerifyMalformed(t *testing.T) {
	a := newTestJWT(t, 0)
	other, err := NewJWTAuthority(JWTConfig{Secret: "another-secret-that-is-also-32-bytes-long", Issuer: "planner-auth"})
	require.NoError(t, err)

	foreign, err := other.Issue(context.Background(), Subject{UserID: "u-1"})
	require.NoError(t, err)

	issued, err := a.Issue(context.Background(), Subject{UserID: "u-1"})
	require.NoError(t, err)
	own := strings.Split(issued.Token, ".")
	tampered := own[0] + "." + strings.Split(foreign.Token, ".")[1] + "." + own[2]

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	noneToken, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", foreign.Token},
		{"tampered signature", tampered},
		{"alg none", noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Verify(context.Background(), tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		})
	}
}

func TestJWT_VerifyRequiresSubject(t *testing.T) {
	a := newTestJWT(t, 0)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "planner-auth",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = a.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestJWT_VerifyRequiresExpiry(t *testing.T) {
	a := newTestJWT(t, 0)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: "planner-auth"},
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = a.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestJWT_RevokeUnsupported(t *testing.T) {
	a := newTestJWT(t, 0)
	err := a.Revoke(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrRevocationUnsupported)
	assert.Equal(t, 501, apperrors.HTTPStatus(err))
}
