package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", "clairvoyant")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := issuer.Issue("user-1", "sess-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Subject != "user-1" || claims.ID != "sess-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenIssuerRejects(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret", "clairvoyant")
	other, _ := NewTokenIssuer("other-secret", "clairvoyant")
	wrongAudience, _ := NewTokenIssuer("test-secret", "someone-else")

	expired, _ := issuer.Issue("user-1", "sess-1", time.Now().Add(-time.Minute))
	forged, _ := other.Issue("user-1", "sess-1", time.Now().Add(time.Hour))
	misaddressed, _ := wrongAudience.Issue("user-1", "sess-1", time.Now().Add(time.Hour))
	noSession, _ := issuer.Issue("user-1", "", time.Now().Add(time.Hour))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1", ID: "sess-1"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"expired":    expired,
		"forged":     forged,
		"audience":   misaddressed,
		"no session": noSession,
		"alg none":   unsigned,
		"garbage":    "not-a-token",
	}
	for name, token := range cases {
		if _, err := issuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("  ", ""); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

type fakeResolver struct {
	identity *Identity
	err      error
	tokens   []string
}

func (f *fakeResolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	f.tokens = append(f.tokens, token)
	return f.identity, f.err
}

func newTestRouter(resolver SessionResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", SessionMiddleware(resolver), func(c *gin.Context) {
		userID, ok := GetUserID(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, userID)
	})
	return router
}

func TestSessionMiddlewareInjectsIdentity(t *testing.T) {
	resolver := &fakeResolver{identity: &Identity{UserID: "user-1", SessionID: "sess-1"}}
	router := newTestRouter(resolver)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || resp.Body.String() != "user-1" {
		t.Fatalf("unexpected response %d %q", resp.Code, resp.Body.String())
	}
	if len(resolver.tokens) != 1 || resolver.tokens[0] != "abc" {
		t.Fatalf("unexpected tokens passed to resolver: %v", resolver.tokens)
	}
}

func TestSessionMiddlewareRejects(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		resolver *fakeResolver
		status   int
	}{
		{"missing header", "", &fakeResolver{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", &fakeResolver{}, http.StatusUnauthorized},
		{"empty token", "Bearer  ", &fakeResolver{}, http.StatusUnauthorized},
		{"revoked session", "Bearer abc", &fakeResolver{err: ErrInvalidToken}, http.StatusUnauthorized},
		{"store down", "Bearer abc", &fakeResolver{err: errors.New("redis down")}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(tc.resolver)
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.Code)
			}
		})
	}
}
