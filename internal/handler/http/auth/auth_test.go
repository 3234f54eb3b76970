package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func testSetupEnv(t *testing.T) func() {
	t.Helper()
	if err := os.Setenv("JWT_SECRET", "test-secret-key-at-least-32-characters-long-for-testing"); err != nil {
		t.Fatalf("failed to set JWT_SECRET: %v", err)
	}
	return func() {
		if err := os.Unsetenv("JWT_SECRET"); err != nil {
			t.Errorf("failed to unset JWT_SECRET: %v", err)
		}
	}
}

func testSuccessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func TestIsPublicEndpoint(t *testing.T) {
	cases := map[string]bool{
		"/health":        true,
		"/ready":         true,
		"/live":          true,
		"/metrics":       true,
		"/swagger/index": true,
		"/articles":      false,
		"/sources/1":     false,
	}
	for path, want := range cases {
		if got := IsPublicEndpoint(path); got != want {
			t.Errorf("IsPublicEndpoint(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestValidateServiceToken_RejectsEmptyShortAndWeak(t *testing.T) {
	defer os.Unsetenv("SERVICE_TOKEN")

	os.Unsetenv("SERVICE_TOKEN")
	if err := ValidateServiceToken(); err == nil {
		t.Fatal("expected error for unset SERVICE_TOKEN")
	}

	os.Setenv("SERVICE_TOKEN", "short")
	if err := ValidateServiceToken(); err == nil {
		t.Fatal("expected error for short SERVICE_TOKEN")
	}

	os.Setenv("SERVICE_TOKEN", "adminadminadminadminadminadminad")
	if err := ValidateServiceToken(); err == nil {
		t.Fatal("expected error for weak SERVICE_TOKEN")
	}

	os.Setenv("SERVICE_TOKEN", "a-sufficiently-long-random-service-credential")
	if err := ValidateServiceToken(); err != nil {
		t.Fatalf("expected no error for valid SERVICE_TOKEN, got %v", err)
	}
}

func TestAuthz_PublicEndpointBypassesToken(t *testing.T) {
	cleanup := testSetupEnv(t)
	defer cleanup()

	handler := Authz(testSuccessHandler())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestAuthz_MissingTokenRejected(t *testing.T) {
	cleanup := testSetupEnv(t)
	defer cleanup()

	handler := Authz(testSuccessHandler())
	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestAuthz_ValidServiceTokenAccepted(t *testing.T) {
	cleanup := testSetupEnv(t)
	defer cleanup()

	token, err := IssueServiceToken()
	if err != nil {
		t.Fatalf("IssueServiceToken: %v", err)
	}

	handler := Authz(testSuccessHandler())
	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestAuthz_WrongAudienceRejected(t *testing.T) {
	cleanup := testSetupEnv(t)
	defer cleanup()

	secret := []byte(os.Getenv("JWT_SECRET"))
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "someone",
		"aud": "other-service",
	})
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	handler := Authz(testSuccessHandler())
	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestAuthz_WrongSigningSecretRejected(t *testing.T) {
	cleanup := testSetupEnv(t)
	defer cleanup()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "service",
		"aud": "vigilfeed-admin",
	})
	signed, err := tok.SignedString([]byte("a-different-secret-entirely-not-the-right-one"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	handler := Authz(testSuccessHandler())
	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d", rec.Code)
	}
}
