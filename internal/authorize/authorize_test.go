package authorize

import (
	"errors"
	"net/url"
	"testing"

	"github.com/brizzai/oauth-callback/internal/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Host: config.DefaultHost, Port: config.DefaultPort},
		Callback: config.CallbackConfig{Path: config.DefaultCallbackPath},
		OAuth: config.OAuthConfig{
			Provider: ProviderCustom,
			ClientID: "client-123",
			AuthURL:  config.DefaultAuthURL,
			Scopes:   config.DefaultScopes,
		},
	}
}

func TestAuthCodeURL_Custom(t *testing.T) {
	a, err := NewAuthorizer(testConfig())
	require.NoError(t, err)

	req := a.AuthCodeURL("fixed-state")
	assert.Equal(t, "fixed-state", req.State)
	assert.Equal(t, "http://127.0.0.1:8080/", req.RedirectURI)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, "ticktick.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "client-123", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://127.0.0.1:8080/", q.Get("redirect_uri"))
	assert.Equal(t, "tasks:read tasks:write", q.Get("scope"))
	assert.Equal(t, "fixed-state", q.Get("state"))
}

func TestAuthCodeURL_RandomState(t *testing.T) {
	a, err := NewAuthorizer(testConfig())
	require.NoError(t, err)

	first := a.AuthCodeURL("")
	second := a.AuthCodeURL("")

	_, err = uuid.Parse(first.State)
	assert.NoError(t, err)
	assert.NotEqual(t, first.State, second.State)

	u, err := url.Parse(first.URL)
	require.NoError(t, err)
	assert.Equal(t, first.State, u.Query().Get("state"))
}

func TestAuthCodeURL_GitHub(t *testing.T) {
	cfg := testConfig()
	cfg.OAuth.Provider = ProviderGitHub
	cfg.OAuth.Scopes = "read:user"
	cfg.OAuth.RedirectURL = "http://localhost:9000/cb"

	a, err := NewAuthorizer(cfg)
	require.NoError(t, err)

	u, err := url.Parse(a.AuthCodeURL("s").URL)
	require.NoError(t, err)
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "http://localhost:9000/cb", u.Query().Get("redirect_uri"))
	assert.Equal(t, "read:user", u.Query().Get("scope"))
}

func TestNewAuthorizer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		target error
	}{
		{name: "missing client id", mutate: func(c *config.Config) { c.OAuth.ClientID = "" }, target: ErrMissingClientID},
		{name: "unknown provider", mutate: func(c *config.Config) { c.OAuth.Provider = "myspace" }, target: ErrUnsupportedProvider},
		{name: "bad auth url", mutate: func(c *config.Config) { c.OAuth.AuthURL = "not a url" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := NewAuthorizer(cfg)
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target))
			}
		})
	}
}
