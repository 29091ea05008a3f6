package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestID, RealIP and Recoverer come from chi and fit [Middleware] directly.
var (
	RequestID Middleware = middleware.RequestID
	RealIP    Middleware = middleware.RealIP
	Recoverer Middleware = middleware.Recoverer
)

// Logging logs one line per request with method, path, status and duration.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Defaults is the middleware stack shared by the loopback and web servers.
func Defaults(logger *log.Logger) []Middleware {
	return []Middleware{RequestID, RealIP, Logging(logger), Recoverer}
}
