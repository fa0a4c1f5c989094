package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"donato/backend/internal/auth"
)

type contextKey string

const sessionIDKey contextKey = "session_id"

// SessionIDFromContext returns the donor session id set by Session.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(sessionIDKey).(string)
	return val, ok && val != ""
}

// WithSessionID is used by tests and the reconcile tool to run handlers without a cookie.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sid)
}

// SessionOptions configures the session cookie middleware.
type SessionOptions struct {
	Secret string
	TTL    time.Duration
	Secure bool
	Logger *slog.Logger
}

// Session makes sure every request carries a signed session cookie and puts its id in
// the request context. Invalid or expired cookies are replaced with a fresh session.
func Session(opts SessionOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
				sid, err := auth.ParseSession(opts.Secret, cookie.Value)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
					return
				}
				logger.Debug("session_cookie_rejected", "path", r.URL.Path, "error", err)
			}

			sid := auth.NewSessionID()
			value, err := auth.SignSession(opts.Secret, sid, opts.TTL)
			if err != nil {
				logger.Error("session_sign", "status", "failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     auth.SessionCookieName,
				Value:    value,
				Path:     "/",
				MaxAge:   int(opts.TTL.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
		})
	}
}
