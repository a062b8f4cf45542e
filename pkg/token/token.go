// Package token issues and verifies bearer tokens. Two strategies share one
// interface: signed stateless JWTs, verified without I/O and never revocable,
// and opaque session handles backed by a server-side record that can be
// revoked. A third verifier delegates verification to the auth service over
// HTTP.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

// Kind names a token strategy.
type Kind string

const (
	KindJWT    Kind = "jwt"
	KindOpaque Kind = "opaque"
)

// Claims is what a verified token proves about its bearer.
type Claims struct {
	UserID    string    `json:"user_id"`
	Identity  string    `json:"username"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Device describes the client a session was issued to.
type Device struct {
	UserAgent string `json:"user_agent,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// Subject is the authenticated user a token is issued for.
type Subject struct {
	UserID   string
	Identity string
	Device   Device
}

// Issued is a freshly minted token. Token is the only copy of the secret
// value; it is never persisted or logged.
type Issued struct {
	Token     string    `json:"access_token"`
	Kind      Kind      `json:"token_kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verifier validates a presented token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Authority issues, verifies and revokes tokens of one strategy.
type Authority interface {
	Verifier
	Issue(ctx context.Context, subject Subject) (*Issued, error)
	Revoke(ctx context.Context, token string) error
}

// Reasons a token is rejected. Every verification failure returned by this
// package also matches apperrors.ErrUnauthorized and carries a generic
// message, so callers cannot tell the reasons apart from the response.
var (
	ErrExpired   = errors.New("token expired")
	ErrMalformed = errors.New("token malformed")
	ErrRevoked   = errors.New("token revoked")
	ErrUnknown   = errors.New("token unknown")
	ErrRejected  = errors.New("token rejected by remote verifier")
)

// ErrRevocationUnsupported is returned by Revoke on stateless strategies.
var ErrRevocationUnsupported = &apperrors.AppError{
	Code:    "REVOCATION_UNSUPPORTED",
	Message: "this token scheme cannot be revoked; it expires on its own",
	Status:  http.StatusNotImplemented,
}

// authFailure wraps reason in a generic 401 error.
func authFailure(reason error) error {
	return fmt.Errorf("%w: %w", apperrors.Unauthorized("invalid or expired token"), reason)
}

// delegating issues with one authority and verifies with another.
type delegating struct {
	issuer   Authority
	verifier Verifier
}

// NewDelegatingAuthority returns an Authority that issues and revokes through
// issuer but verifies through verifier. It pairs a local JWT issuer with a
// RemoteVerifier so verification is delegated to the auth service.
func NewDelegatingAuthority(issuer Authority, verifier Verifier) Authority {
	return &delegating{issuer: issuer, verifier: verifier}
}

func (d *delegating) Issue(ctx context.Context, subject Subject) (*Issued, error) {
	return d.issuer.Issue(ctx, subject)
}

func (d *delegating) Verify(ctx context.Context, token string) (*Claims, error) {
	return d.verifier.Verify(ctx, token)
}

func (d *delegating) Revoke(ctx context.Context, token string) error {
	return d.issuer.Revoke(ctx, token)
}
