package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/project"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/task"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-task-go/pkg/utilities"
)

const apiPrefix = "/pitchfork-api-task"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDMiddleware tags every request with an X-Request-ID, keeping one
// supplied by the client.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = utilities.NewRequestID()
				r.Header.Set("X-Request-ID", id)
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", r.Header.Get("X-Request-ID"),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
// The service only serves JSON, so the policy is strict.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("Cache-Control", "no-store")
			if r.TLS != nil {
				// 30 days by default
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Pinger reports store health; *sqlx.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the handlers and collaborators mounted by RegisterRoutes.
type Deps struct {
	Logger      *zap.SugaredLogger
	Store       Pinger
	Users       *user.Handler
	Projects    *project.Handler
	Tasks       *task.Handler
	RequireUser func(http.Handler) http.Handler
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+apiPrefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if d.Store != nil {
			if err := d.Store.PingContext(ctx); err != nil {
				d.Logger.Warnw("health check: store unreachable", "err", err)
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// identity
	mux.HandleFunc("POST "+apiPrefix+"/register", d.Users.Register)
	mux.HandleFunc("POST "+apiPrefix+"/login", d.Users.Login)
	authed := func(h http.HandlerFunc) http.Handler { return d.RequireUser(h) }
	mux.Handle("GET "+apiPrefix+"/me", authed(d.Users.Me))

	// projects
	mux.Handle("POST "+apiPrefix+"/projects", authed(d.Projects.Create))
	mux.Handle("GET "+apiPrefix+"/projects", authed(d.Projects.List))
	mux.Handle("GET "+apiPrefix+"/projects/{id}", authed(d.Projects.Get))
	mux.Handle("PUT "+apiPrefix+"/projects/{id}", authed(d.Projects.Update))
	mux.Handle("PATCH "+apiPrefix+"/projects/{id}", authed(d.Projects.Update))
	mux.Handle("DELETE "+apiPrefix+"/projects/{id}", authed(d.Projects.Delete))

	// tasks
	mux.Handle("POST "+apiPrefix+"/tasks", authed(d.Tasks.Create))
	mux.Handle("GET "+apiPrefix+"/tasks", authed(d.Tasks.List))
	mux.Handle("GET "+apiPrefix+"/tasks/{id}", authed(d.Tasks.Get))
	mux.Handle("PATCH "+apiPrefix+"/tasks/{id}", authed(d.Tasks.Update))
	mux.Handle("PUT "+apiPrefix+"/tasks/{id}", authed(d.Tasks.Update))
	mux.Handle("DELETE "+apiPrefix+"/tasks/{id}", authed(d.Tasks.Delete))

	// wrap with security headers middleware then logging middleware
	handler := RequestIDMiddleware()(LoggingMiddleware(d.Logger)(SecurityHeadersMiddleware()(mux)))
	return handler
}
