package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func authTestConfig() ServerConfig {
	return ServerConfig{
		Images:     newFakeImages(),
		Repository: &fakeRepo{token: "secret-token"},
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		StartTime:  time.Now(),
	}
}

func doAuthRequest(t *testing.T, header string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/images", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	NewRouter(authTestConfig()).ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	rr := doAuthRequest(t, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "UNAUTHORIZED" {
		t.Fatalf("code = %v, want UNAUTHORIZED", body["code"])
	}
}

func TestAuthMiddleware_WrongScheme(t *testing.T) {
	rr := doAuthRequest(t, "Basic secret-token")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	rr := doAuthRequest(t, "Bearer wrong-token")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	rr := doAuthRequest(t, "Bearer secret-token")
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestHealthEndpoint_NoAuthRequired(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	NewRouter(authTestConfig()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	NewRouter(authTestConfig()).ServeHTTP(rr, req)

	id := rr.Header().Get("X-Request-ID")
	if len(id) != 8 {
		t.Fatalf("X-Request-ID = %q, want 8 characters", id)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)

	RecoveryMiddleware(logger)(panicky).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "INTERNAL_ERROR" {
		t.Fatalf("code = %v, want INTERNAL_ERROR", body["code"])
	}
}
