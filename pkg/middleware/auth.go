package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/httputil"
	"github.com/Lv-up-Planner/initRepo/pkg/logger"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
)

type contextKeyType string

const (
	userIDKey    contextKeyType = "user_id"
	principalKey contextKeyType = "principal"
	tokenKey     contextKeyType = "bearer_token"
)

// Principal is the verified caller of a request.
type Principal struct {
	UserID   string
	Identity string
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

// Authenticate verifies the bearer token of every request with verifier and
// injects the resulting Principal into the context. Rejected tokens get a
// generic 401; a verifier that cannot be reached yields 503.
func Authenticate(verifier token.Verifier, fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing or malformed authorization header"), fallback)
				return
			}

			claims, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				httputil.WriteError(w, r, err, fallback)
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{UserID: claims.UserID, Identity: claims.Identity})
			ctx = context.WithValue(ctx, tokenKey, raw)

			// Re-enrich the request logger now that the caller is known.
			ctx = logger.WithUserID(ctx, claims.UserID)
			base := logger.FromContext(ctx)
			if base == slog.Default() && fallback != nil {
				base = fallback
			}
			ctx = logger.NewContext(ctx, base.With(slog.String("user_id", claims.UserID)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, userIDKey, p.UserID)
}

// PrincipalFromContext returns the verified caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// TokenFromContext returns the raw bearer token Authenticate accepted. Logout
// uses it to revoke the presented session.
func TokenFromContext(ctx context.Context) string {
	if tok, ok := ctx.Value(tokenKey).(string); ok {
		return tok
	}
	return ""
}
