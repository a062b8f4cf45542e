package http

import (
	"log/slog"
	"net/http"

	"github.com/Lv-up-Planner/initRepo/pkg/httputil"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/pkg/pagination"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/service"
)

// PostHandler handles blog post endpoints.
type PostHandler struct {
	service *service.PostService
	logger  *slog.Logger
}

// NewPostHandler creates a new post HTTP handler.
func NewPostHandler(svc *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{service: svc, logger: logger}
}

// CreatePostRequest is the JSON body of POST /api/posts.
type CreatePostRequest struct {
	Title   string `json:"title" validate:"required,notblank,max=200"`
	Content string `json:"content" validate:"required,notblank,max=20000"`
}

// UpdatePostRequest is the JSON body of PATCH /api/posts/{id}.
type UpdatePostRequest struct {
	Title   *string `json:"title" validate:"omitempty,max=200"`
	Content *string `json:"content" validate:"omitempty,max=20000"`
}

// List handles GET /api/posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	res, err := h.service.List(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// Get handles GET /api/posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, h.logger)
	if !ok {
		return
	}
	post, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: post})
}

// Create handles POST /api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if !decode(w, r, &req, h.logger) {
		return
	}
	post, err := h.service.Create(r.Context(), middleware.UserIDFromContext(r.Context()), req.Title, req.Content)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: post})
}

// Update handles PATCH /api/posts/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, h.logger)
	if !ok {
		return
	}
	var req UpdatePostRequest
	if !decode(w, r, &req, h.logger) {
		return
	}
	post, err := h.service.Update(r.Context(), middleware.UserIDFromContext(r.Context()), id, domain.PostUpdate{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: post})
}

// Delete handles DELETE /api/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
