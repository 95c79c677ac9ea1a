package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "https://idp.example.org",
			Audience:  jwt.ClaimStrings{"portal"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Roles:   []string{"researcher"},
		Studies: []string{"acc_tcga", "brca_tcga"},
	}
}

func runJWT(t *testing.T, cfg JWTConfig, header string) (echo.Context, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	var seen echo.Context
	h := JWTMiddleware(cfg)(func(c echo.Context) error {
		called = true
		seen = c
		return c.String(http.StatusOK, "ok")
	})
	err := h(c)
	if seen == nil {
		seen = c
	}
	return seen, called, err
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, called, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "")
	assertUnauthorized(t, err)
	if called {
		t.Error("next handler should not run")
	}
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, tt.header)
			assertUnauthorized(t, err)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := createTestToken(t, validClaims(), testSigningKey)
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "https://idp.example.org", Audience: "portal"}

	c, called, err := runJWT(t, cfg, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected next handler to run")
	}

	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "user-123" {
		t.Errorf("expected user-123, got %s", got)
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != "researcher" {
		t.Errorf("unexpected roles %v", roles)
	}
	if studies := StudiesFromContext(ctx); len(studies) != 2 || studies[1] != "brca_tcga" {
		t.Errorf("unexpected studies %v", studies)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := createTestToken(t, claims, testSigningKey)

	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	assertUnauthorized(t, err)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, validClaims(), []byte("some-other-key"))

	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	assertUnauthorized(t, err)
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	token := createTestToken(t, validClaims(), testSigningKey)

	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "https://other.example.org"}, "Bearer "+token)
	assertUnauthorized(t, err)
}

func TestJWTMiddleware_AudienceMismatch(t *testing.T) {
	token := createTestToken(t, validClaims(), testSigningKey)

	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Audience: "billing"}, "Bearer "+token)
	assertUnauthorized(t, err)
}

func TestJWTMiddleware_NoVerifierConfigured(t *testing.T) {
	token := createTestToken(t, validClaims(), testSigningKey)

	_, _, err := runJWT(t, JWTConfig{}, "Bearer "+token)
	assertUnauthorized(t, err)
}

func TestJWTMiddleware_RejectsHS256WhenOnlyKeyFunc(t *testing.T) {
	token := createTestToken(t, validClaims(), testSigningKey)
	cfg := JWTConfig{KeyFunc: func(*jwt.Token) (interface{}, error) { return testSigningKey, nil }}

	_, _, err := runJWT(t, cfg, "Bearer "+token)
	assertUnauthorized(t, err)
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	var ctx context.Context
	h := DevAuthMiddleware()(func(c echo.Context) error {
		ctx = c.Request().Context()
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if UserIDFromContext(ctx) != "dev-user" {
		t.Errorf("expected dev-user, got %s", UserIDFromContext(ctx))
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RoleAdmin {
		t.Errorf("expected admin role, got %v", roles)
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := context.Background()
	if UserIDFromContext(ctx) != "" {
		t.Error("expected empty user id")
	}
	if RolesFromContext(ctx) != nil {
		t.Error("expected nil roles")
	}
	if StudiesFromContext(ctx) != nil {
		t.Error("expected nil studies")
	}
}
