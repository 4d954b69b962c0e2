// Package csrf protects the upload and payment forms with the
// double-submit cookie pattern.
//
// A random token is set in a cookie and repeated in a hidden form field.
// A cross-site page can make the browser send the cookie but cannot read
// it, so it cannot put the matching value in the form body.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

const (
	CookieName    = "convertly_csrf"
	FormFieldName = "csrf_token"

	// HeaderName carries the token for scripted posts that send no form
	// field, such as a checkout callback posting JSON.
	HeaderName = "X-CSRF-Token"

	// tokenBytes of randomness, 43 characters once encoded.
	tokenBytes = 32

	// cookieMaxAge is two hours, enough to finish a checkout opened from
	// the premium page.
	cookieMaxAge = 2 * 60 * 60
)

// GenerateToken returns a random base64url token.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateToken compares the cookie token with the submitted token in
// constant time. Empty tokens never match.
func ValidateToken(cookieToken, submitted string) bool {
	if cookieToken == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submitted)) == 1
}

// ValidateRequest checks the submitted token against the cookie. The
// header wins over the form field when both are present.
//
// For multipart forms the caller must have parsed the body already
// (ParseMultipartForm), otherwise FormValue parses it with default limits.
func ValidateRequest(r *http.Request) bool {
	submitted := r.Header.Get(HeaderName)
	if submitted == "" {
		submitted = r.FormValue(FormFieldName)
	}
	return ValidateToken(cookieToken(r), submitted)
}

// EnsureToken returns the request's token, generating one when there is
// none. The cookie is re-issued with a full Max-Age either way, so a form
// stays submittable for cookieMaxAge after it was rendered. Call it on
// every GET that renders a form.
func EnsureToken(w http.ResponseWriter, r *http.Request, isSecure bool) (string, error) {
	token := cookieToken(r)
	if token == "" {
		var err error
		if token, err = GenerateToken(); err != nil {
			return "", err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func cookieToken(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
