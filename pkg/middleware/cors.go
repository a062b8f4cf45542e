package middleware

import (
	"cmp"
	"net/http"
	"slices"

	"github.com/go-chi/cors"

	"github.com/Lv-up-Planner/initRepo/pkg/logger"
)

var (
	defaultCORSMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	defaultCORSHeaders = []string{"Accept", "Authorization", "Content-Type", logger.CorrelationHeader}
)

// CORSConfig configures CORS. Empty fields fall back to the planner API's
// defaults.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	MaxAge           int
	AllowCredentials bool

	// Environment "development" admits every origin.
	Environment string
}

// DefaultCORSConfig is the permissive development setup.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{AllowedOrigins: []string{"*"}, Environment: "development"}
}

func (c CORSConfig) options() cors.Options {
	origins := c.AllowedOrigins
	if c.Environment == "development" {
		origins = []string{"*"}
	}
	opts := cors.Options{
		AllowedOrigins:   slices.Clone(origins),
		AllowedMethods:   orDefault(c.AllowedMethods, defaultCORSMethods),
		AllowedHeaders:   orDefault(c.AllowedHeaders, defaultCORSHeaders),
		ExposedHeaders:   orDefault(c.ExposedHeaders, []string{logger.CorrelationHeader}),
		AllowCredentials: c.AllowCredentials,
		MaxAge:           cmp.Or(c.MaxAge, 3600),
	}
	if len(origins) == 0 {
		// The library treats an empty list as "*".
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return opts
}

// CORS answers preflight requests and decorates cross-origin responses.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cfg.options())
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
