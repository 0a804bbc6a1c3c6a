package httpapi

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	goamiddleware "goa.design/goa/v3/middleware"

	"realestate/internal/config"
	"realestate/internal/domain"
	apperrors "realestate/pkg/errors"
)

type ctxKey int

const userKey ctxKey = iota

// UserFromContext returns the authenticated back-office user, if any
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok
}

// securityHeaders adds security headers to responses
func securityHeaders(handler http.Handler, cfg *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// HSTS only behind TLS outside debug
		if !cfg.App.Debug && r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		handler.ServeHTTP(w, r)
	})
}

// corsHandler applies the configured origins. "*" allows any origin.
func corsHandler(handler http.Handler, cfg *config.Config) http.Handler {
	origins := cfg.CORS.AllowedOrigins
	allowAll := len(origins) == 0 || (len(origins) == 1 && origins[0] == "*")

	opts := cors.Options{
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "Content-Disposition"},
		MaxAge:           cfg.CORS.MaxAge,
		AllowCredentials: !allowAll,
	}
	if allowAll {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowedOrigins = origins
	}
	return cors.New(opts).Handler(handler)
}

// statusRecorder captures the status code for logging
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLogging logs every request and its outcome with the request id
func requestLogging(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health checks are too noisy to log
		if r.URL.Path == "/health" {
			handler.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		reqID, _ := r.Context().Value(goamiddleware.RequestIDKey).(string)
		if reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		log.Printf("[REQUEST] id=%s %s %s from %s", reqID, r.Method, r.URL.Path, clientIP(r))
		handler.ServeHTTP(wrapped, r)

		outcome := "OK"
		if wrapped.statusCode >= 400 {
			outcome = "ERROR"
		}
		log.Printf("[RESPONSE] id=%s %s %s -> %d %s (%v)", reqID, r.Method, r.URL.Path, wrapped.statusCode, outcome, time.Since(start))
	})
}

// Authenticator resolves bearer tokens to users
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// requireUser rejects requests without a valid bearer token. With adminOnly
// the user must be an admin; otherwise admin or staff is enough.
func requireUser(auth Authenticator, adminOnly bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(ctx, w, apperrors.Unauthorized("authorization header required"))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			writeError(ctx, w, apperrors.Unauthorized("invalid authorization header format"))
			return
		}

		user, err := auth.Authenticate(ctx, strings.TrimSpace(parts[1]))
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		allowed := user.IsAdmin
		if !adminOnly {
			allowed = user.CanManage()
		}
		if !allowed {
			log.Printf("[AUTH] Forbidden: user=%s %s %s", user.Username, r.Method, r.URL.Path)
			writeError(ctx, w, apperrors.Forbidden("insufficient permissions"))
			return
		}

		next(w, r.WithContext(context.WithValue(ctx, userKey, user)))
	}
}
