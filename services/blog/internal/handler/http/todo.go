package http

import (
	"log/slog"
	"net/http"

	"github.com/Lv-up-Planner/initRepo/pkg/httputil"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/service"
)

// TodoHandler handles todo endpoints. Every route acts on the caller's own
// todos.
type TodoHandler struct {
	service *service.TodoService
	logger  *slog.Logger
}

// NewTodoHandler creates a new todo HTTP handler.
func NewTodoHandler(svc *service.TodoService, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{service: svc, logger: logger}
}

// CreateTodoRequest is the JSON body of POST /api/todos. A missing xp_reward
// selects the default reward.
type CreateTodoRequest struct {
	Title    string `json:"title" validate:"required,notblank,max=200"`
	XPReward int    `json:"xp_reward" validate:"gte=0,lte=1000"`
}

// Create handles POST /api/todos
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTodoRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	todo, err := h.service.Create(r.Context(), middleware.UserIDFromContext(r.Context()), req.Title, req.XPReward)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: todo})
}

// List handles GET /api/todos
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	todos, err := h.service.List(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: todos})
}

// Get handles GET /api/todos/{id}
func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, h.logger)
	if !ok {
		return
	}
	todo, err := h.service.Get(r.Context(), middleware.UserIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: todo})
}

// Complete handles POST /api/todos/{id}/complete
func (h *TodoHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, h.logger)
	if !ok {
		return
	}
	res, err := h.service.Complete(r.Context(), middleware.UserIDFromContext(r.Context()), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: res})
}

// Delete handles DELETE /api/todos/{id}
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
