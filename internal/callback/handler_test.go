package callback

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brizzai/oauth-callback/internal/config"
	"github.com/brizzai/oauth-callback/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(path string) *config.Config {
	return &config.Config{
		Callback: config.CallbackConfig{
			Path:    path,
			Param:   config.DefaultCallbackParam,
			Missing: config.DefaultMissingValue,
		},
	}
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func TestHandler_RootRoute(t *testing.T) {
	mux := newMux(NewHandler(testConfig("/")))

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "code present",
			method:     http.MethodGet,
			target:     "/?code=ABC123",
			wantStatus: http.StatusOK,
			wantBody:   "Authorization Code: ABC123",
		},
		{
			name:       "code absent",
			method:     http.MethodGet,
			target:     "/",
			wantStatus: http.StatusOK,
			wantBody:   "Authorization Code: None",
		},
		{
			name:       "code empty",
			method:     http.MethodGet,
			target:     "/?code=",
			wantStatus: http.StatusOK,
			wantBody:   "Authorization Code: ",
		},
		{
			name:       "other params ignored",
			method:     http.MethodGet,
			target:     "/?state=xyz&code=q%2Fw%3De",
			wantStatus: http.StatusOK,
			wantBody:   "Authorization Code: q/w=e",
		},
		{
			name:       "first of repeated values",
			method:     http.MethodGet,
			target:     "/?code=first&code=second",
			wantStatus: http.StatusOK,
			wantBody:   "Authorization Code: first",
		},
		{
			name:       "undecodable escape echoed as sent",
			method:     http.MethodGet,
			target:     "/?code=%zz",
			wantStatus: http.StatusOK,
			wantBody:   "Authorization Code: %zz",
		},
		{
			name:       "semicolon kept in value",
			method:     http.MethodGet,
			target:     "/?code=abc;def",
			wantStatus: http.StatusOK,
			wantBody:   "Authorization Code: abc;def",
		},
		{
			name:       "plus decodes to space",
			method:     http.MethodGet,
			target:     "/?state=s&code=a+b",
			wantStatus: http.StatusOK,
			wantBody:   "Authorization Code: a b",
		},
		{
			name:       "bare key is present and empty",
			method:     http.MethodGet,
			target:     "/?code",
			wantStatus: http.StatusOK,
			wantBody:   "Authorization Code: ",
		},
		{
			name:       "error redirect without code",
			method:     http.MethodGet,
			target:     "/?error=access_denied",
			wantStatus: http.StatusOK,
			wantBody:   "Authorization Code: None",
		},
		{
			name:       "unknown path",
			method:     http.MethodGet,
			target:     "/favicon.ico",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "wrong method",
			method:     http.MethodPost,
			target:     "/?code=ABC123",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.target, nil)

			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestHandler_CustomPathAndParam(t *testing.T) {
	cfg := testConfig("/oauth/callback")
	cfg.Callback.Param = "token"
	cfg.Callback.Missing = "<missing>"
	mux := newMux(NewHandler(cfg))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?token=t1&code=ignored", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Authorization Code: t1", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback", nil))
	assert.Equal(t, "Authorization Code: <missing>", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?token=t1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Pattern(t *testing.T) {
	assert.Equal(t, "GET /{$}", NewHandler(testConfig("/")).Pattern())
	assert.Equal(t, "GET /cb", NewHandler(testConfig("/cb")).Pattern())
}

func TestHandler_CodeLoggedOnlyAtDebug(t *testing.T) {
	prev := logger.GetLogger()
	t.Cleanup(func() { logger.SetLogger(prev) })

	const code = "SECRET-CODE-42"
	mux := newMux(NewHandler(testConfig("/")))

	tests := []struct {
		name      string
		level     zapcore.Level
		wantValue bool
	}{
		{name: "info", level: zapcore.InfoLevel, wantValue: false},
		{name: "debug", level: zapcore.DebugLevel, wantValue: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(tt.level)
			logger.SetLogger(zap.New(core))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?code="+code, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			require.NotEmpty(t, logs.FilterMessage("Received authorization code").All())
			found := false
			for _, entry := range logs.All() {
				for _, v := range entry.ContextMap() {
					if s, ok := v.(string); ok && s == code {
						found = true
						assert.Equal(t, zapcore.DebugLevel, entry.Level)
					}
				}
			}
			assert.Equal(t, tt.wantValue, found)
		})
	}
}

func TestLookupParam(t *testing.T) {
	tests := []struct {
		raw         string
		wantValue   string
		wantPresent bool
	}{
		{raw: "", wantPresent: false},
		{raw: "state=x", wantPresent: false},
		{raw: "code=1&code=2", wantValue: "1", wantPresent: true},
		{raw: "c%6Fde=enc", wantValue: "enc", wantPresent: true},
		{raw: "&&code=x", wantValue: "x", wantPresent: true},
		{raw: "code=a=b", wantValue: "a=b", wantPresent: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			value, present := lookupParam(tt.raw, "code")
			assert.Equal(t, tt.wantPresent, present)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}
