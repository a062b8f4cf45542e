package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

const maxErrorBody = 64 << 10

// envelope is the {"data": ..., "error": ...} body every service answers with.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response and returns an
// AppError that keeps the upstream's status, code and message, prefixed with
// service. Unstructured bodies keep the status and a generic message.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned %d, reading body: %w", service, resp.StatusCode, err)
	}

	appErr := apperrors.From(statusSentinel(resp.StatusCode))
	upstream := &apperrors.AppError{
		Code:    appErr.Code,
		Message: fmt.Sprintf("%s: %s", service, http.StatusText(resp.StatusCode)),
		Status:  resp.StatusCode,
		Err:     appErr.Err,
	}
	var env envelope
	if json.Unmarshal(raw, &env) == nil && env.Error != nil {
		upstream.Code = env.Error.Code
		upstream.Message = fmt.Sprintf("%s: %s", service, env.Error.Message)
		upstream.Fields = env.Error.Fields
	}
	return upstream
}

// statusSentinel picks the taxonomy sentinel matching an upstream status.
func statusSentinel(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.ErrInvalidInput
	case http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case http.StatusForbidden:
		return apperrors.ErrForbidden
	case http.StatusNotFound:
		return apperrors.ErrNotFound
	case http.StatusConflict:
		return apperrors.ErrConflict
	case http.StatusGone:
		return apperrors.ErrGone
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return apperrors.ErrServiceUnavail
	}
	return fmt.Errorf("upstream status %d", status)
}

// IsClientError reports a 4xx status: the upstream rejected the request
// rather than failing to serve it.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
