package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/convertly/internal/domain"
)

func testLimiter(t *testing.T, max int, window time.Duration) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(max, window, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(rl.Close)
	return rl
}

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestNewPaymentRateLimiter(t *testing.T) {
	rl := NewPaymentRateLimiter(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer rl.Close()

	if rl.maxAttempts != 10 {
		t.Errorf("expected maxAttempts=10, got %d", rl.maxAttempts)
	}
	if rl.window != 15*time.Minute {
		t.Errorf("expected window=15m, got %v", rl.window)
	}
}

func TestRateLimiter_Allow_AtLimit(t *testing.T) {
	rl := testLimiter(t, 5, time.Minute)

	for i := 0; i < 5; i++ {
		if !rl.Allow("192.168.1.1") {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("192.168.1.1") {
		t.Error("6th request should be denied")
	}
}

func TestRateLimiter_Allow_DifferentIPs(t *testing.T) {
	rl := testLimiter(t, 1, time.Minute)

	rl.Allow("192.168.1.1")
	if rl.Allow("192.168.1.1") {
		t.Error("IP 1 should be rate limited")
	}
	if !rl.Allow("192.168.1.2") {
		t.Error("IP 2 should have its own limit")
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl := testLimiter(t, 2, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("ip")
	rl.Allow("ip")
	if rl.Allow("ip") {
		t.Fatal("should be limited inside the window")
	}
	if got := rl.TimeUntilReset("ip"); got != time.Minute {
		t.Errorf("expected 1m until reset, got %v", got)
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("ip") {
		t.Error("should be allowed after the window")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := testLimiter(t, 1, time.Minute)

	rl.Allow("ip")
	rl.Reset("ip")
	if !rl.Allow("ip") {
		t.Error("should be allowed after reset")
	}
	if rl.TimeUntilReset("unknown") != 0 {
		t.Error("unknown key should have no wait")
	}
}

// =============================================================================
// Rate Limit Middleware Tests
// =============================================================================

func limitedHandler(rl *RateLimiter) http.Handler {
	return rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	}))
}

func TestRateLimiter_Limit_BlocksAfterLimit(t *testing.T) {
	rl := testLimiter(t, 2, time.Minute)
	handler := limitedHandler(rl)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/payment-success", nil)
		req.RemoteAddr = "1.2.3.4:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("request %d: expected 303, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest("POST", "/payment-success", nil)
	req.RemoteAddr = "1.2.3.4:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("expected plain text, got %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "Too many requests") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestRateLimiter_Limit_JSONResponse(t *testing.T) {
	rl := testLimiter(t, 1, time.Minute)
	handler := limitedHandler(rl)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/payment-success", nil)
		req.Header.Set("Accept", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i == 1 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body["error"] != domain.ERATELIMIT {
				t.Errorf("expected error %q, got %q", domain.ERATELIMIT, body["error"])
			}
		}
	}
}

func TestRateLimiter_Limit_KeysOnForwardedIP(t *testing.T) {
	rl := testLimiter(t, 1, time.Minute)
	proxy := NewClientIPMiddleware([]netip.Prefix{netip.MustParsePrefix("10.0.0.1/32")})
	handler := proxy.Handler(limitedHandler(rl))

	send := func(xff string) int {
		req := httptest.NewRequest("POST", "/payment-success", nil)
		req.RemoteAddr = "10.0.0.1:1"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if send("1.1.1.1") != http.StatusSeeOther {
		t.Error("first client should pass")
	}
	if send("2.2.2.2") != http.StatusSeeOther {
		t.Error("second client behind the same proxy should pass")
	}
	if send("1.1.1.1") != http.StatusTooManyRequests {
		t.Error("first client should now be limited")
	}
}
