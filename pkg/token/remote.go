package token

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/httpclient"
)

// VerifyResult is the body the auth service returns from GET /verify.
type VerifyResult struct {
	Valid  bool    `json:"valid"`
	Claims *Claims `json:"claims,omitempty"`
}

// RemoteVerifier delegates verification to the auth service. A rejected token
// is an auth failure; an unreachable or failing auth service is Unavailable,
// never a silent accept.
type RemoteVerifier struct {
	client  *httpclient.Breaker
	baseURL string
}

// NewRemoteVerifier creates a verifier that calls {baseURL}/verify.
func NewRemoteVerifier(client *httpclient.Breaker, baseURL string) *RemoteVerifier {
	return &RemoteVerifier{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Verify asks the auth service whether token is valid.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, authFailure(ErrMalformed)
	}

	req, err := httpclient.NewJSONRequest(ctx, http.MethodGet, v.baseURL+"/verify", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var res VerifyResult
	switch err := v.client.DoJSON(ctx, req, &res); {
	case errors.Is(err, apperrors.ErrUnauthorized):
		return nil, authFailure(ErrRejected)
	case err != nil:
		return nil, apperrors.Unavailable("token verifier unavailable", err)
	}
	if !res.Valid || res.Claims == nil || res.Claims.UserID == "" {
		return nil, authFailure(ErrRejected)
	}
	return res.Claims, nil
}
