// Package middleware provides HTTP middleware for the assessment API.
package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CORSOptions configures cross-origin access to the API.
type CORSOptions struct {
	// AllowedOrigins lists origins echoed back to the browser. "*" matches
	// any origin but never grants credentials.
	AllowedOrigins []string
	// AllowedHeaders are request headers a browser may send, on top of
	// Content-Type.
	AllowedHeaders []string
	// ExposedHeaders are response headers scripts may read.
	ExposedHeaders []string
	// MaxAge caches preflight results. Zero leaves it to the browser.
	MaxAge time.Duration
}

// CORS returns middleware that handles CORS headers.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	allowHeaders := strings.Join(append([]string{"Content-Type"}, opts.AllowedHeaders...), ", ")
	exposeHeaders := strings.Join(opts.ExposedHeaders, ", ")
	wildcard := slices.Contains(opts.AllowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			explicit := origin != "" && slices.Contains(opts.AllowedOrigins, origin)

			if origin != "" && (explicit || wildcard) {
				h := w.Header()
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				if exposeHeaders != "" {
					h.Set("Access-Control-Expose-Headers", exposeHeaders)
				}
				if opts.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(int(opts.MaxAge.Seconds())))
				}
				// Credentials only for explicitly listed origins; a wildcard echo
				// with credentials enables CSRF.
				if explicit {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
