package core

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"bloomwatch/internal/types"
)

// RequireAPIKey guards mutating and computationally expensive routes. The
// deployment configures a single bcrypt-hashed key (API_KEY_HASH); clients
// present the plaintext key in the X-Api-Key header or as a Bearer token.
// When no hash is configured the deployment is open and the middleware
// passes through, which is the expected mode for local development.
//
// bcrypt comparison runs in constant time, so the check leaks no timing
// signal about the configured key. On success a types.Caller holding a key
// fingerprint is stored in the request context for rate limiting and logs.
func (s *Server) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := s.Config.Security.APIKeyHash
		if !hash.IsSet() {
			next.ServeHTTP(w, r)
			return
		}

		key := extractAPIKey(r)
		if key == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthKeyMissing, "API key is required")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(hash.Unmask()), []byte(key)); err != nil {
			s.Logger.Warn("rejected API key",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("key_fingerprint", keyFingerprint(key)),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthKeyInvalid, "Invalid API key")
			return
		}

		caller := types.Caller{
			ID:   keyFingerprint(key),
			Type: types.CallerTypeAPIKey,
		}
		next.ServeHTTP(w, r.WithContext(types.WithCaller(r.Context(), caller)))
	})
}

// extractAPIKey pulls the client key from the X-Api-Key header, falling
// back to a Bearer token in Authorization. Returns "" when neither carries
// a value.
func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-Api-Key")); key != "" {
		return key
	}
	return extractBearerToken(r.Header.Get("Authorization"))
}

// extractBearerToken parses an Authorization header of the form
// "Bearer <token>". The scheme comparison is case-insensitive per RFC 7235.
// Returns "" when the header does not carry a bearer token.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// keyFingerprint derives a stable, non-reversible identifier for the
// presented key. The fingerprint appears in logs and rate-limit state; the
// key itself never does.
func keyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key_" + hex.EncodeToString(sum[:6])
}

// writeAuthError writes a 401 Unauthorized envelope with the given code.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	}
	JSON(w, r, http.StatusUnauthorized, resp)
}
