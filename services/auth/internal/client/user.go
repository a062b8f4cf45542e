// Package client calls the user service.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/httpclient"
)

// Account is the identity the user service returns for valid credentials.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// UserClient verifies credentials against the user service.
type UserClient struct {
	http    *httpclient.Breaker
	baseURL string
}

// NewUserClient creates a client for the user service at baseURL.
func NewUserClient(c *httpclient.Breaker, baseURL string) *UserClient {
	return &UserClient{http: c, baseURL: strings.TrimRight(baseURL, "/")}
}

// VerifyCredentials returns the account for a valid username/password pair.
// Rejected credentials are Unauthorized; an unreachable or failing user
// service is Unavailable.
func (c *UserClient) VerifyCredentials(ctx context.Context, username, password string) (*Account, error) {
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, c.baseURL+"/users/verify-credentials", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var acct Account
	err = c.http.DoJSON(ctx, req, &acct)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUnauthorized):
		return nil, apperrors.Unauthorized("invalid credentials")
	case errors.Is(err, apperrors.ErrInvalidInput):
		return nil, apperrors.InvalidInput("username and password are required")
	case httpclient.IsClientError(apperrors.HTTPStatus(err)):
		return nil, fmt.Errorf("verify credentials: %w", err)
	default:
		return nil, apperrors.Unavailable("user service unavailable", err)
	}
	if acct.ID == "" {
		return nil, apperrors.Unavailable("user service unavailable", errors.New("verify-credentials response without account"))
	}
	return &acct, nil
}
