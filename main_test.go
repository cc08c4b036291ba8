package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bankcards/config"
	"bankcards/database"
	"bankcards/middleware"
	"bankcards/services"
	"bankcards/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var testJWTKey = []byte("test-secret")

func newTestRouter(t *testing.T, limit int) http.Handler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cipher, err := newCipher(config.CardConfig{
		Cipher:             "aes",
		EncryptionPassword: "card-secret",
		EncryptionSalt:     "5c0744940b5c369b",
	})
	if err != nil {
		t.Fatal(err)
	}

	metrics := utils.NewMetrics()
	svc := services.NewCardService(database.NewMemoryCardStore(), cipher, []byte("hmac"), log, services.WithMetrics(metrics))
	return newRouter(svc, testJWTKey, utils.NewRateLimiter(limit, time.Minute), metrics, log)
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(t, 10)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d want=200", rec.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	router := newTestRouter(t, 10)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/cards", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code=%d want=401", rec.Code)
	}
}

func TestCORSPreflightReachesRouter(t *testing.T) {
	router := newTestRouter(t, 10)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/user/cards/transfer", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("code=%d want=204", rec.Code)
	}
}

func TestAPIRateLimited(t *testing.T) {
	router := newTestRouter(t, 2)
	tok, err := middleware.GenerateToken(testJWTKey, uuid.New(), []string{middleware.RoleUser}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/user/cards", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("request %d: code=%d want=200", i, rec.Code)
		}
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("code=%d want=429", last)
	}
}

func TestNewCipherPGPRequiresKeys(t *testing.T) {
	if _, err := newCipher(config.CardConfig{Cipher: "pgp"}); err == nil {
		t.Fatal("expected error without keys")
	}
}
