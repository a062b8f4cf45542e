package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Lv-up-Planner/initRepo/pkg/httputil"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
	"github.com/Lv-up-Planner/initRepo/pkg/validator"
	"github.com/Lv-up-Planner/initRepo/services/auth/internal/service"
)

// AuthHandler handles login and token verification.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// VerifyRequest is the optional JSON body of POST /verify.
type VerifyRequest struct {
	Token string `json:"token"`
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.service.Login(r.Context(), req.Username, req.Password, token.Device{
		UserAgent: r.UserAgent(),
		IP:        httputil.ClientIP(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: res})
}

// Verify handles GET /verify and POST /verify. The token comes from the
// Authorization header or, for POST, from a {"token": "..."} body.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	raw, ok := middleware.BearerToken(r)
	if !ok && r.Method == http.MethodPost {
		var req VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			raw = req.Token
		}
	}

	claims, err := h.service.Verify(r.Context(), raw)
	if err != nil {
		status, body := httputil.ErrorBody(r, err)
		if status != http.StatusUnauthorized {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteJSON(w, status, httputil.Response{
			Data:  token.VerifyResult{Valid: false},
			Error: body,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: token.VerifyResult{Valid: true, Claims: claims},
	})
}

// Stats handles GET /stats
func (h *AuthHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.service.Stats()})
}
