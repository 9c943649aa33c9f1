package gateway

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odvcencio/switchboard/pkg/logging"
)

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware tags every request with an id for log correlation.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request latency per method and route, and
// emits a debug-level access event.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(started)
		observeRequest(r.Method, routeLabel(r), elapsed)
		_ = s.events.Debug(logging.CategoryGateway, "request", "", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"elapsed_ms": elapsed.Milliseconds(),
		})
	})
}

// routeLabel collapses dispatch paths into one label so arbitrary POST
// paths cannot explode metric cardinality.
func routeLabel(r *http.Request) string {
	if r.Method == http.MethodPost {
		return "/"
	}
	switch r.URL.Path {
	case "/commands", "/healthz", "/metrics":
		return r.URL.Path
	default:
		return "/"
	}
}

// corsMiddleware adds CORS headers based on the allowed origins list.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.isOriginAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware adds standard security headers to responses.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware converts handler panics into a 500 wire error.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				_ = s.events.Error(logging.CategoryGateway, "panic", fmt.Sprintf("recovered: %v", rec), map[string]any{
					"path": r.URL.Path,
				})
				respondWireError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// isOriginAllowed checks the origin against the configured allow list.
// Comparison is by scheme and host; an entry of "*" allows everything.
func (s *Server) isOriginAllowed(origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return false
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	normalized := strings.ToLower(parsed.Scheme) + "://" + parsed.Host

	for _, allowed := range s.cfg.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, normalized) {
			return true
		}
		// Allow-list entries without a port match any port on that host.
		allowedURL, err := url.Parse(allowed)
		if err != nil || allowedURL.Scheme == "" || allowedURL.Host == "" {
			continue
		}
		if !strings.EqualFold(allowedURL.Scheme, parsed.Scheme) {
			continue
		}
		if allowedURL.Port() == "" && strings.EqualFold(allowedURL.Hostname(), parsed.Hostname()) {
			return true
		}
	}
	return false
}
