package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// Data is the session payload.
type Data struct {
	PaymentID string `json:"payment_id,omitempty"`
	IssuedAt  int64  `json:"issued_at"`
}

// Empty reports whether the session carries nothing worth keeping.
func (d Data) Empty() bool {
	return d.PaymentID == ""
}

// Manager signs, verifies and refreshes session cookies.
type Manager struct {
	key      []byte
	lifetime time.Duration
	secure   bool
	now      func() time.Time
}

// NewManager derives the signing key from secret with HKDF-SHA256.
func NewManager(secret string, lifetime time.Duration, secure bool) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("session: secret is required")
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}

	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("session: derive key: %w", err)
	}

	return &Manager{
		key:      key,
		lifetime: lifetime,
		secure:   secure,
		now:      time.Now,
	}, nil
}

// =============================================================================
// Encoding
// =============================================================================

// claims is the signed cookie payload. The payment id rides alongside
// the registered iat/exp claims.
type claims struct {
	PaymentID string `json:"payment_id,omitempty"`
	jwt.RegisteredClaims
}

// Encode signs d as an HS256 JWT expiring one lifetime after d.IssuedAt.
func (m *Manager) Encode(d Data) (string, error) {
	issued := time.Unix(d.IssuedAt, 0)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		PaymentID: d.PaymentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(m.lifetime)),
		},
	})
	return token.SignedString(m.key)
}

// Decode verifies and parses a cookie value. ok is false for tampered,
// malformed or expired values.
func (m *Manager) Decode(value string) (d Data, ok bool) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(value, c,
		func(*jwt.Token) (any, error) { return m.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid || c.IssuedAt == nil {
		return Data{}, false
	}
	return Data{PaymentID: c.PaymentID, IssuedAt: c.IssuedAt.Unix()}, true
}

// =============================================================================
// Cookies
// =============================================================================

// Load reads the session from the request. Invalid cookies yield an empty session.
func (m *Manager) Load(r *http.Request) Data {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Data{}
	}
	d, ok := m.Decode(c.Value)
	if !ok {
		return Data{}
	}
	return d
}

// Save writes d to the response with a fresh issue time and full lifetime,
// replacing any session cookie already queued on w.
func (m *Manager) Save(w http.ResponseWriter, d Data) error {
	d.IssuedAt = m.now().Unix()
	value, err := m.Encode(d)
	if err != nil {
		return err
	}

	dropQueuedCookie(w.Header())
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     CookiePath,
		MaxAge:   int(m.lifetime.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// SetPaymentID stamps the session with a payment id.
func (m *Manager) SetPaymentID(w http.ResponseWriter, paymentID string) error {
	return m.Save(w, Data{PaymentID: paymentID})
}

func dropQueuedCookie(h http.Header) {
	existing := h.Values("Set-Cookie")
	if len(existing) == 0 {
		return
	}
	h.Del("Set-Cookie")
	for _, v := range existing {
		if !strings.HasPrefix(v, CookieName+"=") {
			h.Add("Set-Cookie", v)
		}
	}
}

// =============================================================================
// Middleware
// =============================================================================

type contextKey struct{}

// Middleware loads the session into the request context and re-issues a
// non-empty session so its lifetime rolls forward with each visit.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := m.Load(r)
		if !d.Empty() {
			// A failed refresh only shortens the rolling window.
			_ = m.Save(w, d)
		}
		next.ServeHTTP(w, r.WithContext(WithData(r.Context(), d)))
	})
}

// WithData returns a context carrying d.
func WithData(ctx context.Context, d Data) context.Context {
	return context.WithValue(ctx, contextKey{}, d)
}

// FromContext returns the session loaded by Middleware.
func FromContext(ctx context.Context) Data {
	d, _ := ctx.Value(contextKey{}).(Data)
	return d
}

// PaymentID returns the payment id from the request's session, if any.
func PaymentID(ctx context.Context) string {
	return FromContext(ctx).PaymentID
}
