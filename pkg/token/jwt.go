package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultJWTTTL is the lifetime of a stateless token unless configured.
const DefaultJWTTTL = 24 * time.Hour

// minSecretLen is the shortest accepted HS256 signing secret.
const minSecretLen = 32

// jwtClaims is the signed payload of a stateless token.
type jwtClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTConfig configures a JWTAuthority.
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// JWTAuthority issues and verifies HS256-signed stateless tokens. Verify
// performs no I/O, which lets any service holding the shared secret check a
// token without a shared datastore. Tokens cannot be revoked.
type JWTAuthority struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTAuthority creates a JWTAuthority. The secret must be at least 32 bytes.
func NewJWTAuthority(cfg JWTConfig) (*JWTAuthority, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLen)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultJWTTTL
	}
	return &JWTAuthority{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the authority that reads time from now.
func (a *JWTAuthority) WithClock(now func() time.Time) *JWTAuthority {
	cpy := *a
	cpy.now = now
	return &cpy
}

// Issue signs a token for subject that expires after the configured TTL.
func (a *JWTAuthority) Issue(_ context.Context, subject Subject) (*Issued, error) {
	if subject.UserID == "" {
		return nil, fmt.Errorf("issue token: empty subject")
	}
	now := a.now().UTC()
	expiresAt := now.Add(a.ttl)
	claims := &jwtClaims{
		Username: subject.Identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Issued{Token: signed, Kind: KindJWT, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks the signature and expiry of token. An expired token yields
// ErrExpired; a bad signature, foreign algorithm or missing claim yields
// ErrMalformed.
func (a *JWTAuthority) Verify(_ context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, authFailure(ErrExpired)
		}
		return nil, authFailure(fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, authFailure(ErrMalformed)
	}

	out := &Claims{
		UserID:    claims.Subject,
		Identity:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// Revoke always fails: a stateless token stays valid until it expires.
func (a *JWTAuthority) Revoke(context.Context, string) error {
	return ErrRevocationUnsupported
}
