package utils

import (
	"io"
	"net/http"

	"github.com/brizzai/oauth-callback/internal/logger"
	"go.uber.org/zap"
)

// WriteText writes a plain-text response with the given status
func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}
