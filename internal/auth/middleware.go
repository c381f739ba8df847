package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type contextKey string

const identityKey contextKey = "authIdentity"

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID    string
	Username  string
	SessionID string
	DarkMode  bool
}

// SessionResolver turns a bearer token into a live session identity.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}

// WithIdentity stores the identity on ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity retrieves the authenticated identity from context.
func GetIdentity(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	if value, ok := ctx.Value(identityKey).(*Identity); ok && value != nil && value.UserID != "" {
		return value, true
	}
	return nil, false
}

// GetUserID retrieves the authenticated subject from context.
func GetUserID(ctx context.Context) (string, bool) {
	identity, ok := GetIdentity(ctx)
	if !ok {
		return "", false
	}
	return identity.UserID, true
}

// SessionMiddleware rejects requests without a live session and injects the
// caller's identity.
func SessionMiddleware(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := ExtractBearerToken(c.Request.Header.Get("Authorization"))
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), tokenString)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				unauthorized(c, "invalid token")
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session lookup failed"})
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), identity))
		c.Set(string(identityKey), identity)

		c.Next()
	}
}

// ExtractBearerToken returns the token from an Authorization header value.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
