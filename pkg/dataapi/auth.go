package dataapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Sternrassler/htrc-client/pkg/client"
	"github.com/dghubble/oauth1"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthMode names how requests are authenticated.
type AuthMode string

const (
	AuthNone              AuthMode = "none"
	AuthOAuth1            AuthMode = "oauth1"
	AuthBasic             AuthMode = "basic"
	AuthClientCredentials AuthMode = "client_credentials"
)

// Mode reports the authentication mode. An explicit Auth wins; otherwise a
// key alone means two-legged OAuth1 and a key with a TokenURL means the
// client-credentials grant.
func (c Config) Mode() AuthMode {
	switch {
	case c.Auth != "":
		return c.Auth
	case c.Key == "":
		return AuthNone
	case c.TokenURL != "":
		return AuthClientCredentials
	default:
		return AuthOAuth1
	}
}

func (c Config) validateAuth() error {
	mode := c.Mode()
	switch mode {
	case AuthNone:
		return nil
	case AuthOAuth1, AuthBasic:
	case AuthClientCredentials:
		if c.TokenURL == "" {
			return fmt.Errorf("%w: auth %s requires a token url", client.ErrInvalidConfig, mode)
		}
	default:
		return fmt.Errorf("%w: unknown auth mode %q", client.ErrInvalidConfig, mode)
	}
	if c.Key == "" {
		return fmt.Errorf("%w: auth %s requires a key", client.ErrInvalidConfig, mode)
	}
	return nil
}

// transport wraps base with the credentials of cfg.
func transport(ctx context.Context, cfg Config, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	switch cfg.Mode() {
	case AuthOAuth1:
		// Two-legged: the consumer pair signs every request, there is no user token.
		signCtx := context.WithValue(ctx, oauth1.HTTPClient, &http.Client{Transport: base})
		return oauth1.NewConfig(cfg.Key, cfg.Secret).Client(signCtx, oauth1.NewToken("", "")).Transport
	case AuthClientCredentials:
		cc := clientcredentials.Config{
			ClientID:     cfg.Key,
			ClientSecret: cfg.Secret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// Token requests go through base too, never through the credentialed transport.
		tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base})
		return &oauth2.Transport{
			Source: cc.TokenSource(tokenCtx),
			Base:   base,
		}
	case AuthBasic:
		return &basicAuthTransport{key: cfg.Key, secret: cfg.Secret, base: base}
	default:
		return base
	}
}

// basicAuthTransport sends the key pair as HTTP basic credentials.
type basicAuthTransport struct {
	key    string
	secret string
	base   http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.key, t.secret)
	return t.base.RoundTrip(r)
}
