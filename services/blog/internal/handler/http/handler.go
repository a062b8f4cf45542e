package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Lv-up-Planner/initRepo/pkg/httputil"
	"github.com/Lv-up-Planner/initRepo/pkg/validator"
)

func decode(w http.ResponseWriter, r *http.Request, dst any, l *slog.Logger) bool {
	if err := validator.DecodeJSON(r, dst); err != nil {
		httputil.WriteError(w, r, err, l)
		return false
	}
	return true
}

// idParam parses the {id} URL parameter, writing a 400 when it is not a UUID.
func idParam(w http.ResponseWriter, r *http.Request, l *slog.Logger) (string, bool) {
	id, err := httputil.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, l)
		return "", false
	}
	return id.String(), true
}
