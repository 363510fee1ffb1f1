package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleOAuth exchanges Google OAuth authorization codes for verified user
// identities. It backs the hub's "Sign in with Google" flow.
type GoogleOAuth struct {
	cfg *oauth2.Config
}

// NewGoogleOAuth builds a GoogleOAuth from client credentials.
func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the Google consent page URL for the given CSRF state.
func (g *GoogleOAuth) AuthURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the user's identity by calling
// the Google userinfo endpoint with the issued token. Failures are wrapped
// in ErrProvider.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*ProviderUser, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %w", ErrProvider, err)
	}

	resp, err := g.cfg.Client(ctx, tok).Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch userinfo: %w", ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: userinfo status %d: %s", ErrProvider, resp.StatusCode, body)
	}

	var info struct {
		Sub           string `json:"sub"`
		Name          string `json:"name"`
		Email         string `json:"email"`
		Picture       string `json:"picture"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %w", ErrProvider, err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: userinfo missing subject", ErrProvider)
	}

	return &ProviderUser{
		UID:           info.Sub,
		DisplayName:   info.Name,
		Email:         info.Email,
		PhotoURL:      info.Picture,
		EmailVerified: info.EmailVerified,
	}, nil
}
