package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// quietPrefixes are polled by load balancers and scrapers, or are static
// assets. Logging them drowns out conversion and payment traffic.
var quietPrefixes = []string{"/health", "/metrics", "/static/"}

// redactedParams never reach the log. Checkout providers append signatures
// and client secrets to return URLs.
var redactedParams = map[string]bool{
	"token":                        true,
	"code":                         true,
	"key":                          true,
	"secret":                       true,
	"password":                     true,
	"api_key":                      true,
	"signature":                    true,
	"razorpay_signature":           true,
	"payment_intent_client_secret": true,
}

// RequestLoggingMiddleware logs one line per request.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

// NewRequestLoggingMiddleware creates a new request logging middleware.
func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{logger: logger}
}

// Handler logs method, redacted path, status, duration, client ip and user
// agent. Server errors log at warn; handlers log the cause themselves.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if quiet(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		level := slog.LevelInfo
		if sw.code() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		m.logger.LogAttrs(context.Background(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", redactQuery(r.URL.Path, r.URL.RawQuery)),
			slog.Int("status", sw.code()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("ip", ClientIP(r)),
			slog.String("user_agent", r.UserAgent()),
		)
	})
}

func quiet(path string) bool {
	for _, p := range quietPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// statusWriter records the status code. A handler that only calls Write
// has implicitly sent 200.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status == 0 {
		sw.status = code
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) code() int {
	if sw.status == 0 {
		return http.StatusOK
	}
	return sw.status
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// redactQuery replaces the values of sensitive query parameters, keeping
// the order of the rest. Malformed pairs are dropped.
func redactQuery(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		name, _, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if redactedParams[strings.ToLower(name)] {
			pair = name + "=[REDACTED]"
		}
		kept = append(kept, pair)
	}

	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}
