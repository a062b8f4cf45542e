package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestIPAllowlist(t *testing.T) {
	allow := IPAllowlist([]string{"10.0.0.0/8", "fd00::/8", "not-a-cidr", "192.168.1.7/16"}, discardLogger())
	h := allow(okHandler)

	tests := []struct {
		remote string
		want   int
	}{
		{"10.1.2.3:5555", http.StatusOK},
		{"10.1.2.3", http.StatusOK},
		{"192.168.200.1:80", http.StatusOK},
		{"[fd12::1]:443", http.StatusOK},
		{"[::ffff:10.0.0.9]:80", http.StatusOK},
		{"172.16.0.1:80", http.StatusForbidden},
		{"garbage", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.RemoteAddr = tt.remote
		req.Header.Set("X-Forwarded-For", "10.0.0.1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, tt.want, rr.Code, tt.remote)
	}
}

func TestIPAllowlist_EmptyDeniesAll(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rr := httptest.NewRecorder()
	IPAllowlist(nil, discardLogger())(okHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"FORBIDDEN"`)
}

func TestRegisterPprof(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, discardLogger())

	get := func(path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	index := get("/debug/pprof/", "127.0.0.1:9000")
	assert.Equal(t, http.StatusOK, index.Code)
	assert.Contains(t, index.Body.String(), "goroutine")

	assert.Equal(t, http.StatusOK, get("/debug/pprof/cmdline", "127.0.0.1:9000").Code)
	assert.Equal(t, http.StatusOK, get("/debug/vars", "127.0.0.1:9000").Code)
	assert.Equal(t, http.StatusForbidden, get("/debug/pprof/", "203.0.113.5:9000").Code)
}
