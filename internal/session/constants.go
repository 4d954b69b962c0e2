// Package session keeps the premium payment id in a signed cookie.
//
// The cookie carries no server-side state: a payment id proves nothing on
// its own, it is looked up in the entitlements table on every request.
// The signature only stops clients from trying arbitrary ids.
package session

import "time"

const (
	// CookieName is the name of the cookie that stores the session.
	CookieName = "convertly_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// DefaultLifetime is the rolling validity window (30 days). It is
	// independent of the entitlement's own expiry.
	DefaultLifetime = 30 * 24 * time.Hour

	// keyInfo separates the cookie signing key from any other key that
	// might be derived from SESSION_SECRET.
	keyInfo = "convertly session signing v1"

	// issuer is the iss claim of every session token.
	issuer = "convertly"
)
