// Package handler assembles the HTTP handler stack for the callback server.
package handler

import (
	"net/http"
	"time"

	"github.com/brizzai/oauth-callback/internal/callback"
	"github.com/brizzai/oauth-callback/internal/logger"
	"go.uber.org/zap"
)

// Handler manages HTTP request handling and middleware configuration.
type Handler struct {
	callback *callback.Handler
}

// NewHandler creates a new HTTP handler.
func NewHandler(cb *callback.Handler) *Handler {
	return &Handler{
		callback: cb,
	}
}

// CreateHTTPHandler creates the mux serving the callback route, wrapped with request logging.
// Everything else is left to the mux defaults (404 for unknown paths, 405 for other methods).
func (h *Handler) CreateHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	h.callback.RegisterRoutes(mux)
	logger.Info("Registered callback route", zap.String("pattern", h.callback.Pattern()))
	return LogRequests(mux)
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LogRequests logs one line per request once the response has been written
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}
