// Package callback serves the OAuth 2.0 redirect endpoint and echoes the
// authorization code back to the browser.
package callback

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/brizzai/oauth-callback/internal/config"
	"github.com/brizzai/oauth-callback/internal/logger"
	"github.com/brizzai/oauth-callback/internal/utils"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ResponsePrefix precedes the echoed code in every response body
const ResponsePrefix = "Authorization Code: "

// Handler answers the authorization server's redirect
type Handler struct {
	pattern string
	param   string
	missing string
}

// NewHandler creates a Handler for the configured callback route
func NewHandler(cfg *config.Config) *Handler {
	return &Handler{
		pattern: cfg.Callback.Pattern(),
		param:   cfg.Callback.Param,
		missing: cfg.Callback.Missing,
	}
}

// Pattern returns the ServeMux pattern for the callback route
func (h *Handler) Pattern() string {
	return h.pattern
}

// RegisterRoutes mounts the callback route on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(h.pattern, h)
}

// Render returns the response body for a request's query value.
// A parameter that was not sent at all renders as the missing placeholder;
// one sent with an empty value renders as the empty string.
func (h *Handler) Render(value string, present bool) string {
	if !present {
		value = h.missing
	}
	return fmt.Sprintf("%s%s", ResponsePrefix, value)
}

// ServeHTTP handles the OAuth callback
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code, present := lookupParam(r.URL.RawQuery, h.param)

	if present {
		logger.Info("Received authorization code", zap.Int("length", len(code)))
		logger.Debug("Authorization code value", zap.String(h.param, code))
	} else {
		logger.Warn("Callback request without authorization code",
			zap.String("param", h.param),
			zap.String("query", r.URL.RawQuery),
		)
	}

	utils.WriteText(w, http.StatusOK, h.Render(code, present))
}

// lookupParam returns the first value of key in a raw query string.
// Unlike url.ParseQuery it keeps pairs that fail to decode (such as "%zz")
// and does not treat ';' as special, so the value is echoed as sent.
func lookupParam(rawQuery, key string) (string, bool) {
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		if unescape(name) != key {
			continue
		}
		return unescape(value), true
	}
	return "", false
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// Module provides the callback handler
var Module = fx.Module("callback",
	fx.Provide(NewHandler),
)
