package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers every reason a bearer token is rejected.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSecret is returned when no signing secret is configured.
	ErrMissingSecret = errors.New("missing JWT secret")
)

// Claims are the registered claims carried by a session token. The subject is
// the user id and the token id is the server-side session id.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret   []byte
	audience string
	now      func() time.Time
}

// NewTokenIssuer returns an issuer for the given secret and optional audience.
func NewTokenIssuer(secret, audience string) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenIssuer{secret: []byte(secret), audience: strings.TrimSpace(audience), now: time.Now}, nil
}

// Issue signs a token for the session.
func (i *TokenIssuer) Issue(userID, sessionID string, expiresAt time.Time) (string, error) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(i.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies signature, algorithm, expiry and audience.
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if i.audience != "" && !containsAudience(claims.Audience, i.audience) {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func containsAudience(claims jwt.ClaimStrings, expected string) bool {
	for _, aud := range claims {
		if aud == expected {
			return true
		}
	}
	return false
}
