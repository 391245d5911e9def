package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	requestIDKey
)

// RequestIDMiddleware echoes the request id assigned by chi's RequestID middleware.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = r.Header.Get(middleware.RequestIDHeader)
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set(middleware.RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger writes one structured line per request.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", getRequestID(r.Context())),
			)
		})
	}
}

// SessionAuth resolves the session id from a bearer token. Websocket clients may
// pass the token as the "token" query parameter instead.
func SessionAuth(tokens *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := r.URL.Query().Get("token")
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tokenStr = strings.TrimPrefix(h, "Bearer ")
			}
			if tokenStr == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing session token")
				return
			}

			sessionID, err := tokens.Parse(tokenStr)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type sessionLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// SubmitLimiter throttles order submissions per session.
type SubmitLimiter struct {
	mu       sync.Mutex
	limiters map[string]*sessionLimiter
	rps      rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

func NewSubmitLimiter(rps float64, burst int) *SubmitLimiter {
	return &SubmitLimiter{
		limiters: make(map[string]*sessionLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     30 * time.Minute,
		now:      time.Now,
	}
}

func (l *SubmitLimiter) Allow(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	sl, ok := l.limiters[sessionID]
	if !ok {
		l.pruneLocked(now)
		sl = &sessionLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[sessionID] = sl
	}
	sl.last = now
	return sl.limiter.AllowN(now, 1)
}

func (l *SubmitLimiter) pruneLocked(now time.Time) {
	for id, sl := range l.limiters {
		if now.Sub(sl.last) > l.idle {
			delete(l.limiters, id)
		}
	}
}

func (l *SubmitLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(getSessionIDFromContext(r.Context())) {
			w.Header().Set("Retry-After", "5")
			respondError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many order submissions, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getSessionIDFromContext(ctx context.Context) string {
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
