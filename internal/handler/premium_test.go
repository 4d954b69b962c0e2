package handler

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/DukeRupert/convertly/internal/csrf"
	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkout loads the premium page and returns the confirmation form values
// the mock gateway pre-signed.
func (a *testApp) checkout() url.Values {
	a.t.Helper()
	resp, body := a.get("/premium")
	require.Equal(a.t, http.StatusOK, resp.StatusCode, body)

	fields := checkoutFields(a.t, body)
	return url.Values{
		csrf.FormFieldName: {a.csrfToken()},
		"order_id":         {fields["order_id"]},
		"payment_id":       {fields["payment_id"]},
		"signature":        {fields["signature"]},
	}
}

func (a *testApp) hasSessionCookie() bool {
	u, _ := url.Parse(a.server.URL)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == session.CookieName {
			return true
		}
	}
	return false
}

func TestShowPremium_CreatesOrderEachVisit(t *testing.T) {
	app := newTestApp(t, testAppOptions{})

	resp, first := app.get("/premium")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, first, "99.00")
	assert.Contains(t, first, "30 days")
	assert.Contains(t, first, "order_mock_")

	_, second := app.get("/premium")
	assert.NotEqual(t, checkoutFields(t, first)["order_id"], checkoutFields(t, second)["order_id"])
	assert.Equal(t, 0, app.count("premium_entitlements"), "showing an order writes nothing")
}

func TestConfirmPayment_GrantsUnlimitedConversions(t *testing.T) {
	app := newTestApp(t, testAppOptions{})

	resp, _ := app.postForm("/payment-success", app.checkout())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.True(t, app.hasSessionCookie())
	assert.Equal(t, 1, app.count("premium_entitlements"))

	for i := 1; i <= 5; i++ {
		resp, body := app.convertPNG("png")
		require.Equal(t, http.StatusOK, resp.StatusCode, "conversion %d: %s", i, body)
	}
	assert.Equal(t, 0, app.count("daily_usage"), "premium bypasses the counter")

	_, body := app.get("/")
	assert.Contains(t, body, "Premium is active until April 9, 2024")
}

func TestConfirmPayment_PremiumLastsThroughExpiryDay(t *testing.T) {
	app := newTestApp(t, testAppOptions{})

	resp, _ := app.postForm("/payment-success", app.checkout())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	// Still premium on the expiry day itself.
	*app.now = app.now.AddDate(0, 0, domain.DefaultEntitlementDays)
	for i := 0; i < 4; i++ {
		resp, body := app.convertPNG("png")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
	}
	assert.Equal(t, 0, app.count("daily_usage"))

	// The day after expiry the free quota applies again.
	*app.now = app.now.AddDate(0, 0, 1)
	for i := 0; i < 3; i++ {
		resp, _ := app.convertPNG("png")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ = app.convertPNG("png")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestConfirmPayment_TamperedSignature(t *testing.T) {
	app := newTestApp(t, testAppOptions{})

	form := app.checkout()
	form.Set("signature", strings.Repeat("0", 64))

	resp, body := app.postForm("/payment-success", form)

	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, domain.MsgPaymentVerificationFailed, strings.TrimSpace(body))
	assert.Equal(t, 0, app.count("premium_entitlements"))
	assert.False(t, app.hasSessionCookie())
}

func TestConfirmPayment_MissingFields(t *testing.T) {
	app := newTestApp(t, testAppOptions{})

	form := app.checkout()
	form.Del("payment_id")

	resp, body := app.postForm("/payment-success", form)

	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, domain.MsgPaymentVerificationFailed, strings.TrimSpace(body))
	assert.Equal(t, 0, app.count("premium_entitlements"))
}

func TestConfirmPayment_AcceptsRazorpayFieldNames(t *testing.T) {
	app := newTestApp(t, testAppOptions{})

	form := app.checkout()
	razorpayForm := url.Values{
		csrf.FormFieldName:    form[csrf.FormFieldName],
		"razorpay_order_id":   form["order_id"],
		"razorpay_payment_id": form["payment_id"],
		"razorpay_signature":  form["signature"],
	}

	resp, _ := app.postForm("/payment-success", razorpayForm)

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 1, app.count("premium_entitlements"))
}

func TestConfirmPayment_ReplayIsNoOp(t *testing.T) {
	app := newTestApp(t, testAppOptions{})

	form := app.checkout()
	for i := 0; i < 2; i++ {
		resp, _ := app.postForm("/payment-success", form)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	}
	assert.Equal(t, 1, app.count("premium_entitlements"))
}

func TestConfirmPayment_RequiresCSRFToken(t *testing.T) {
	app := newTestApp(t, testAppOptions{})

	form := app.checkout()
	form.Set(csrf.FormFieldName, "forged")

	resp, _ := app.postForm("/payment-success", form)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, app.count("premium_entitlements"))
}

func TestConfirmPayment_RateLimited(t *testing.T) {
	app := newTestApp(t, testAppOptions{confirmLimit: 2})

	form := app.checkout()
	form.Set("signature", "bad")
	for i := 0; i < 2; i++ {
		resp, _ := app.postForm("/payment-success", form)
		require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	}

	resp, _ := app.postForm("/payment-success", form)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestPaymentReturn_OnlyForStripe(t *testing.T) {
	app := newTestApp(t, testAppOptions{})

	resp, _ := app.get("/payment-success?payment_intent=pi_123")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, app.count("premium_entitlements"))
}
