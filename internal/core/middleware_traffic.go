package core

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bloomwatch/internal/types"
)

// RateLimit enforces a per-caller request budget on the wrapped routes. The
// action string names the guarded operation group ("assess", "grid") so
// separate route families draw from separate budgets.
//
// Caller identity is the API-key fingerprint when RequireAPIKey ran first,
// otherwise the client IP. On every decision the middleware sets the
// standard X-RateLimit-* headers; a denied request also gets Retry-After
// and the 429 envelope.
//
// A nil Limiter disables the middleware. Limiter errors fail open: a
// limiter outage must not take the API down with it.
func (s *Server) RateLimit(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			callerID := clientIP(r)
			if caller, ok := types.GetCaller(r.Context()); ok {
				callerID = caller.ID
			}

			info, allowed, err := s.Limiter.Allow(r.Context(), callerID, action)
			if err != nil {
				s.Logger.Error("rate limiter error",
					slog.String("caller_id", callerID),
					slog.String("action", action),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, info)

			if !allowed {
				retryAfter := int(math.Ceil(time.Until(info.ResetAt).Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				resp := APIErrorResponse{
					Error: ErrorDetail{
						Code:      string(types.ErrCodeRateLimit),
						Message:   "Rate limit exceeded; retry after the window resets",
						RequestID: types.GetRequestID(r.Context()),
					},
				}
				JSON(w, r, http.StatusTooManyRequests, resp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders writes the standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, info types.RateLimitInfo) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
}

// MemoryRateLimiter implements types.RateLimiter with fixed windows held in
// process memory. Each (caller, action) pair gets its own bucket; buckets
// whose window has passed are swept on the next Allow call, so the map
// stays proportional to callers active within one window.
//
// Suitable for single-instance deployments; a multi-instance fleet would
// need a shared store behind the same interface.
type MemoryRateLimiter struct {
	limit  int
	window time.Duration
	clock  types.Clock

	mu      sync.Mutex
	buckets map[string]*rateBucket
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

// NewMemoryRateLimiter builds a limiter allowing limit requests per window
// for each (caller, action) pair.
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limit:   limit,
		window:  window,
		clock:   types.RealClock{},
		buckets: make(map[string]*rateBucket),
	}
}

// Allow implements types.RateLimiter.
func (l *MemoryRateLimiter) Allow(_ context.Context, callerID, action string) (types.RateLimitInfo, bool, error) {
	now := l.clock.Now()
	key := callerID + ":" + action

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &rateBucket{resetAt: now.Add(l.window)}
		l.buckets[key] = b
	}

	info := types.RateLimitInfo{Limit: l.limit, ResetAt: b.resetAt}
	if b.count >= l.limit {
		return info, false, nil
	}

	b.count++
	info.Remaining = l.limit - b.count
	return info, true, nil
}

// sweepLocked drops buckets whose window has passed. Caller holds mu.
func (l *MemoryRateLimiter) sweepLocked(now time.Time) {
	for k, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, k)
		}
	}
}
