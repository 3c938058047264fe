package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/oauth2"
)

// PKCEProviderConfig configures an oauth_pkce AuthProfile's token endpoint.
type PKCEProviderConfig struct {
	ClientID    string
	RedirectURL string
	AuthURL     string
	TokenURL    string
	Scopes      []string
}

// PKCEFlow drives an OAuth2 authorization-code-with-PKCE exchange for the
// oauth_pkce AuthProfile method (spec.md §3's method enum).
type PKCEFlow struct {
	config   oauth2.Config
	verifier string
}

// NewPKCEFlow creates a flow with a freshly generated code verifier.
func NewPKCEFlow(cfg PKCEProviderConfig) (*PKCEFlow, error) {
	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, err
	}
	return &PKCEFlow{
		config: oauth2.Config{
			ClientID:    strings.TrimSpace(cfg.ClientID),
			RedirectURL: strings.TrimSpace(cfg.RedirectURL),
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  strings.TrimSpace(cfg.AuthURL),
				TokenURL: strings.TrimSpace(cfg.TokenURL),
			},
		},
		verifier: verifier,
	}, nil
}

// AuthURL returns the authorization URL for state, with the PKCE code
// challenge attached.
func (f *PKCEFlow) AuthURL(state string) string {
	challenge := codeChallengeS256(f.verifier)
	return f.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange trades an authorization code for a token, presenting the PKCE
// verifier generated alongside this flow's AuthURL.
func (f *PKCEFlow) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("authorization code required")
	}
	return f.config.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", f.verifier))
}

// ProfileData marshals a token into the opaque `data` payload stored on an
// oauth_pkce AuthProfile.
func ProfileData(token *oauth2.Token) (json.RawMessage, error) {
	payload := struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken,omitempty"`
		TokenType    string `json:"tokenType,omitempty"`
		Expiry       int64  `json:"expiry,omitempty"`
	}{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if !token.Expiry.IsZero() {
		payload.Expiry = token.Expiry.Unix()
	}
	return json.Marshal(payload)
}

func generateCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func codeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
