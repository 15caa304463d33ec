// Package authorize builds the authorization request URL whose redirect is
// caught by the callback server.
package authorize

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/brizzai/oauth-callback/internal/config"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var (
	// ErrUnsupportedProvider indicates an unknown oauth.provider value
	ErrUnsupportedProvider = errors.New("unsupported OAuth provider")
	// ErrMissingClientID indicates oauth.client_id was not configured
	ErrMissingClientID = errors.New("oauth.client_id is required")
)

const (
	ProviderCustom = "custom"
	ProviderGitHub = "github"
)

// Request is a prepared authorization request
type Request struct {
	URL         string
	State       string
	RedirectURI string
}

// Authorizer builds authorization URLs for one OAuth client
type Authorizer struct {
	oauth2Config *oauth2.Config
}

// NewAuthorizer creates an Authorizer from the oauth section of cfg.
// The redirect URI defaults to the callback server's own URL.
func NewAuthorizer(cfg *config.Config) (*Authorizer, error) {
	if cfg.OAuth.ClientID == "" {
		return nil, ErrMissingClientID
	}

	endpoint, err := endpointFor(cfg.OAuth)
	if err != nil {
		return nil, err
	}

	return &Authorizer{
		oauth2Config: &oauth2.Config{
			ClientID:    cfg.OAuth.ClientID,
			Endpoint:    endpoint,
			RedirectURL: cfg.CallbackURL(),
			Scopes:      strings.Fields(cfg.OAuth.Scopes),
		},
	}, nil
}

func endpointFor(cfg config.OAuthConfig) (oauth2.Endpoint, error) {
	switch cfg.Provider {
	case ProviderGitHub:
		return github.Endpoint, nil
	case ProviderCustom, "":
		u, err := url.Parse(cfg.AuthURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return oauth2.Endpoint{}, fmt.Errorf("invalid oauth.auth_url %q", cfg.AuthURL)
		}
		return oauth2.Endpoint{AuthURL: cfg.AuthURL}, nil
	default:
		return oauth2.Endpoint{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewState returns a random opaque state value
func NewState() string {
	return uuid.NewString()
}

// AuthCodeURL builds the authorization URL. An empty state is replaced with a random one.
func (a *Authorizer) AuthCodeURL(state string) Request {
	if state == "" {
		state = NewState()
	}
	return Request{
		URL:         a.oauth2Config.AuthCodeURL(state),
		State:       state,
		RedirectURI: a.oauth2Config.RedirectURL,
	}
}
