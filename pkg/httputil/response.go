// Package httputil holds the JSON envelope every service answers with.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/logger"
)

// Response is the {"data": ...} / {"error": ...} envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v with status. Encoding errors are dropped: the header is
// already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody renders err as the client sees it. Causes never leave the process.
func ErrorBody(r *http.Request, err error) (int, *ErrorResponse) {
	appErr := apperrors.From(err)
	return appErr.Status, &ErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Fields:    appErr.Fields,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}
}

// WriteError writes err as an error envelope. 5xx errors are logged with
// their cause on the request-scoped logger, or on fallback when no
// RequestLogger is mounted.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	status, body := ErrorBody(r, err)
	if status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("code", body.Code),
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}
	WriteJSON(w, status, Response{Error: body})
}

// ParseUUID parses a path parameter, failing with INVALID_PARAMETER.
func ParseUUID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		appErr := apperrors.InvalidInput("invalid UUID: " + raw)
		appErr.Code = "INVALID_PARAMETER"
		return uuid.Nil, appErr
	}
	return id, nil
}
