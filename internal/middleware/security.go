package middleware

import (
	"net/http"
	"strings"
)

// Third-party origins the checkout page loads from.
const (
	razorpayCheckoutOrigin = "https://checkout.razorpay.com"
	razorpayAPIOrigin      = "https://api.razorpay.com"
	stripeJSOrigin         = "https://js.stripe.com"
	stripeAPIOrigin        = "https://api.stripe.com"
	stripeHooksOrigin      = "https://hooks.stripe.com"
)

// SecurityHeadersMiddleware adds HTTP security headers to all responses.
type SecurityHeadersMiddleware struct {
	isSecure bool // Whether to enable HTTPS-specific headers (true in production)
	csp      string
}

// NewSecurityHeadersMiddleware creates a new security headers middleware.
// Set isSecure to true in production to enable HSTS.
func NewSecurityHeadersMiddleware(isSecure bool) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{
		isSecure: isSecure,
		csp:      buildCSP(),
	}
}

// Handler returns middleware that sets security headers on all responses.
func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()

		// Prevent clickjacking - deny all framing
		h.Set("X-Frame-Options", "DENY")

		// Prevent MIME type sniffing
		h.Set("X-Content-Type-Options", "nosniff")

		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// HSTS - only in production with HTTPS
		if m.isSecure {
			// max-age=31536000 = 1 year
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		h.Set("Content-Security-Policy", m.csp)

		// Payment request API is used by both checkout widgets.
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(self \""+stripeJSOrigin+"\" \""+razorpayAPIOrigin+"\")")

		next.ServeHTTP(w, r)
	})
}

// buildCSP constructs the Content-Security-Policy header value.
// Pages are server-rendered with small inline scripts for the checkout hand-off;
// the gateways' widgets run in iframes served from their own origins.
func buildCSP() string {
	directives := []string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline' " + razorpayCheckoutOrigin + " " + stripeJSOrigin,
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data: https:",
		"font-src 'self'",
		"connect-src 'self' " + razorpayAPIOrigin + " " + stripeAPIOrigin,
		"frame-src " + razorpayAPIOrigin + " " + razorpayCheckoutOrigin + " " + stripeJSOrigin + " " + stripeHooksOrigin,
		"frame-ancestors 'none'",
		"base-uri 'self'",
		// Razorpay posts the checkout result back to us; 3-D Secure redirects leave the site.
		"form-action 'self' " + razorpayAPIOrigin,
	}
	return strings.Join(directives, "; ")
}
