package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a setup token fails signature or claim
// validation.
var ErrInvalidToken = errors.New("auth: invalid setup token")

// SetupTokenClaims identify the profile a setup_token / claude_code_import
// AuthProfile was minted for.
type SetupTokenClaims struct {
	AgentID   string `json:"agentId"`
	ProfileID string `json:"profileId"`
	jwt.RegisteredClaims
}

// SetupTokenIssuer signs and verifies the bearer tokens stored as the
// opaque `data` payload of setup_token/claude_code_import profiles.
type SetupTokenIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewSetupTokenIssuer builds an issuer with the given HMAC secret and
// token lifetime (0 disables expiry).
func NewSetupTokenIssuer(secret string, expiry time.Duration) *SetupTokenIssuer {
	return &SetupTokenIssuer{secret: []byte(secret), expiry: expiry}
}

// Issue mints a signed token for (agentID, profileID).
func (i *SetupTokenIssuer) Issue(agentID, profileID string) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("setup token issuer has no secret configured")
	}
	if strings.TrimSpace(profileID) == "" {
		return "", errors.New("profile id required")
	}

	claims := SetupTokenClaims{
		AgentID:   agentID,
		ProfileID: profileID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  profileID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if i.expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(i.expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate parses and verifies a setup token, returning its claims.
func (i *SetupTokenIssuer) Validate(token string) (*SetupTokenClaims, error) {
	if len(i.secret) == 0 {
		return nil, errors.New("setup token issuer has no secret configured")
	}

	parsed, err := jwt.ParseWithClaims(token, &SetupTokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*SetupTokenClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.ProfileID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
