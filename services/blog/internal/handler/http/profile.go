package http

import (
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/httputil"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/service"
)

// ProfileHandler handles profile and leaderboard endpoints.
type ProfileHandler struct {
	service *service.ProfileService
	logger  *slog.Logger
}

// NewProfileHandler creates a new profile HTTP handler.
func NewProfileHandler(svc *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{service: svc, logger: logger}
}

// UpdateProfileRequest is the JSON body of PATCH /api/profile. Omitted
// fields are left unchanged.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=50"`
	Gender      *string `json:"gender" validate:"omitempty,max=20"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url,max=500"`
}

// Get handles GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: p})
}

// Update handles PATCH /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	p, err := h.service.Update(r.Context(), middleware.UserIDFromContext(r.Context()), domain.ProfileUpdate{
		DisplayName: req.DisplayName,
		Gender:      req.Gender,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: p})
}

// Leaderboard handles GET /api/leaderboard?limit=N
func (h *ProfileHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("limit must be an integer"), h.logger)
			return
		}
		if v == 0 {
			httputil.WriteError(w, r, apperrors.InvalidInput("limit must be between 1 and 100"), h.logger)
			return
		}
		limit = v
	}

	entries, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: entries})
}

// Stats handles GET /stats
func (h *ProfileHandler) Stats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{
		"profile_cache": h.service.CacheStats(r.Context()),
	}})
}
