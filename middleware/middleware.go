package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"bankcards/utils"

	"github.com/sirupsen/logrus"
)

// statusRecorder запоминает код ответа для логирования
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Logger логирует запросы и учитывает их в метриках.
// Тело ответа не логируется: в нем могут быть данные карт.
func Logger(log logrus.FieldLogger, metrics *utils.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(startTime)
			if metrics != nil {
				metrics.RecordRequest(duration, rec.statusCode >= http.StatusInternalServerError)
			}

			entry := log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.statusCode,
				"duration": duration.String(),
			})
			if rec.statusCode >= http.StatusInternalServerError {
				entry.Error("Запрос завершился ошибкой")
				return
			}
			entry.Info("Запрос обработан")
		})
	}
}

// Recovery перехватывает панику обработчика и отвечает 500
func Recovery(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithField("path", r.URL.Path).Errorf("Panic recovered: %v", err)
					writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS добавляет заголовки CORS и отвечает на preflight запросы
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit ограничивает частоту запросов с одного IP-адреса
func RateLimit(limiter *utils.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := clientIP(r)

			allowed := limiter.Allow(clientIP)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(clientIP)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(limiter.ResetAt(clientIP).Unix(), 10))

			if !allowed {
				writeError(w, http.StatusTooManyRequests, "Слишком много запросов")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
