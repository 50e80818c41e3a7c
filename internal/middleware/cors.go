package middleware

import (
	"net/http"
	"strings"
)

// Origins is a browser origin allow-list. A "*" entry or an empty list allows any origin.
type Origins struct {
	allowAll bool
	allowed  map[string]struct{}
}

// NewOrigins builds the allow-list from configured origins.
func NewOrigins(allowedOrigins []string) Origins {
	o := Origins{allowAll: len(allowedOrigins) == 0, allowed: make(map[string]struct{}, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			o.allowAll = true
			continue
		}
		o.allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return o
}

// AllowAll reports whether every origin is accepted.
func (o Origins) AllowAll() bool {
	return o.allowAll
}

// Allows reports whether origin may call the API.
func (o Origins) Allows(origin string) bool {
	if o.allowAll {
		return true
	}
	_, ok := o.allowed[strings.TrimRight(origin, "/")]
	return ok
}

// CORS allows browser calls from the configured origins. A "*" entry allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := NewOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if origins.AllowAll() {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else if origins.Allows(origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
