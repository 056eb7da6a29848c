package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloomwatch/internal/types"
)

// defaultRequestTimeout bounds request contexts when the configuration does
// not set one. Synchronous assessments fan out to several upstream
// providers, so this stays generous.
const defaultRequestTimeout = 30 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in
// request logs so credentials never land in log storage.
var defaultRedactedHeaders = []string{
	"Authorization",
	"X-Api-Key",
	"Cookie",
}

// MountRoutes registers the global middleware chain, the health endpoints,
// and the /v1 API group.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Get("/healthz", s.HandleLive)
	s.router.Get("/readyz", s.HandleReady)

	s.router.Route("/v1", s.mountV1)
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering rationale:
//  1. Recoverer       - outermost so every panic is caught.
//  2. ContextTimeout  - soft deadline before the listener's hard timeout.
//  3. RequestID       - correlation ID for logs and responses.
//  4. RealIP          - rewrites RemoteAddr from X-Forwarded-For.
//  5. SecurityHeaders - present on all responses, including errors.
//  6. RequestLogger   - structured logging with redacted headers.
//  7. CORS            - browser access control, handles preflight.
//  8. Metrics         - request latency and count recording.
//
// RequireAPIKey and RateLimit are route-scoped rather than global; the
// route registrars attach them to mutating and expensive endpoints only,
// leaving read-only site lookups open.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RealIPMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, s.redactedHeaders()))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
}

// mountV1 registers the v1 endpoints via registrars populated by the entry
// point. The indirection avoids an import cycle between core and the
// handler packages.
func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

// requestTimeout returns the configured request timeout, falling back to
// the default when the config leaves it unset.
func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

// redactedHeaders returns the header names to mask in request logs.
func (s *Server) redactedHeaders() []string {
	return defaultRedactedHeaders
}

// corsAllowedOrigins returns the CORS allowed origins from configuration.
func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}

// ContextTimeoutMiddleware sets a deadline on the request context so slow
// upstream providers cannot pin a request forever. Handlers observe the
// cancellation through their outbound calls.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware generates or propagates a request correlation ID. An
// incoming X-Request-Id header is reused so upstream proxies can stitch
// traces together; otherwise a fresh random ID is generated. The ID is
// stored in the context and echoed on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces 16 random bytes as 32 hex characters. If
// crypto/rand fails a timestamp-derived fallback keeps the ID non-empty;
// correlation matters more than unpredictability here.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
