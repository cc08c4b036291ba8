package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bankcards/utils"
)

func TestRecovery(t *testing.T) {
	h := Recovery(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code=%d want=500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Fatalf("panic value leaked: %s", rec.Body.String())
	}
}

func TestLoggerRecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	log := utils.NewLoggerWithOutput("info", "text", &buf)
	metrics := utils.NewMetrics()

	h := Logger(log, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("card 4111111111111111"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	snapshot := metrics.GetMetricsSnapshot()
	if snapshot["total_requests"].(int64) != 2 || snapshot["failed_requests"].(int64) != 1 {
		t.Fatalf("snapshot=%v", snapshot)
	}
	if strings.Contains(buf.String(), "4111111111111111") {
		t.Fatal("response body must not be logged")
	}
	if !strings.Contains(buf.String(), "path=/fail") {
		t.Fatalf("log=%q", buf.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/user/cards", nil))
	if rec.Code != http.StatusNoContent || called {
		t.Fatalf("code=%d called=%v", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestRateLimit(t *testing.T) {
	limiter := utils.NewRateLimiter(2, time.Minute)
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/user/cards", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 0 && rec.Header().Get("X-RateLimit-Remaining") != "1" {
			t.Fatalf("remaining=%q want=1", rec.Header().Get("X-RateLimit-Remaining"))
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes=%v", codes)
	}

	// Другой клиент ограничивается отдельно
	req := httptest.NewRequest(http.MethodGet, "/api/user/cards", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d want=200", rec.Code)
	}
}
