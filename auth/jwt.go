package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"triple-triad-server/matcherrors"
)

const bearerPrefix = "Bearer "

// Verifier checks bearer tokens issued by the auth service at a base URL.
// A nil *Verifier means auth is disabled.
type Verifier struct {
	keyfunc jwt.Keyfunc
	issuer  string
}

// NewVerifier fetches signing keys from <baseURL>/.well-known/jwks.json and
// keeps them refreshed in the background. An empty baseURL disables auth and
// returns (nil, nil).
func NewVerifier(baseURL string) (*Verifier, error) {
	if baseURL == "" {
		return nil, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid auth base URL: %w", err)
	}
	jwks, err := keyfunc.NewDefault([]string{strings.TrimSuffix(baseURL, "/") + "/.well-known/jwks.json"})
	if err != nil {
		return nil, err
	}
	return &Verifier{keyfunc: jwks.Keyfunc, issuer: u.Scheme + "://" + u.Host}, nil
}

// Enabled reports whether tokens are checked at all.
func (v *Verifier) Enabled() bool { return v != nil }

// Verify validates tokenString and returns the user id it was issued to.
func (v *Verifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, v.keyfunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, matcherrors.ErrInvalidToken)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", matcherrors.ErrInvalidToken
	}
	userID := UserIDFromClaims(claims)
	if userID == "" {
		return "", fmt.Errorf("token has no subject: %w", matcherrors.ErrInvalidToken)
	}
	return userID, nil
}

// FromRequest verifies the Authorization: Bearer header of r.
func (v *Verifier) FromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", fmt.Errorf("missing bearer token: %w", matcherrors.ErrInvalidToken)
	}
	return v.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
}

// Authorize checks that the caller may act as playerID. With auth disabled
// every playerID is accepted.
func (v *Verifier) Authorize(r *http.Request, playerID string) error {
	if !v.Enabled() {
		return nil
	}
	userID, err := v.FromRequest(r)
	if err != nil {
		return err
	}
	if userID != playerID {
		return fmt.Errorf("token is for %q, not %q: %w", userID, playerID, matcherrors.ErrForbidden)
	}
	return nil
}

// UserIDFromClaims returns the user id from claims ("sub" or "id").
func UserIDFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}
