package capability

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidSession = errors.New("invalid session")

// SessionClaims are the claims carried by a platform session token
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HS256 session tokens minted by the hosted
// sign-in page
type JWTAuthenticator struct {
	secret    []byte
	signInURL string
	issuer    string
}

// NewJWTAuthenticator creates an authenticator. issuer may be empty to skip
// the issuer check.
func NewJWTAuthenticator(secret, signInURL, issuer string) (*JWTAuthenticator, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if signInURL == "" {
		return nil, errors.New("sign-in URL is required")
	}
	return &JWTAuthenticator{
		secret:    []byte(secret),
		signInURL: signInURL,
		issuer:    issuer,
	}, nil
}

// Authenticate checks signature, expiry and subject of the token
func (a *JWTAuthenticator) Authenticate(token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSession
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Token:  token,
	}, nil
}

// SignInURL appends the return address to the hosted sign-in page
func (a *JWTAuthenticator) SignInURL(returnTo string) string {
	u, err := url.Parse(a.signInURL)
	if err != nil {
		return a.signInURL
	}
	q := u.Query()
	q.Set("redirect_uri", returnTo)
	u.RawQuery = q.Encode()
	return u.String()
}
