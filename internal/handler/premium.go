// Package handler contains HTTP handlers for the Convertly application.
//
// This file implements the premium checkout and payment confirmation.
//
// Routes handled:
//   - GET  /premium         -> ShowPremium
//   - POST /payment-success -> ConfirmPayment
//   - GET  /payment-success -> PaymentReturn (Stripe redirect after 3-D Secure)
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/convertly/internal/billing"
	"github.com/DukeRupert/convertly/internal/csrf"
	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/service"
	"github.com/DukeRupert/convertly/internal/session"
)

// mockSigner is implemented by the development gateway, which lets the
// checkout page carry a pre-signed confirmation.
type mockSigner interface {
	NewPaymentID() string
	Sign(orderID, paymentID string) string
}

// PremiumHandler handles the premium checkout flow.
type PremiumHandler struct {
	payments     service.PaymentService
	entitlements service.EntitlementService
	gateway      billing.Gateway
	sessions     *session.Manager
	limit        func(http.Handler) http.Handler
	renderer     *Renderer
	site         SiteInfo
	baseURL      string
	isSecure     bool
	logger       *slog.Logger
}

// PremiumHandlerConfig groups the PremiumHandler's collaborators.
type PremiumHandlerConfig struct {
	Payments     service.PaymentService
	Entitlements service.EntitlementService
	Gateway      billing.Gateway
	Sessions     *session.Manager
	// Limit wraps the confirmation routes, typically a per-IP rate limiter.
	Limit    func(http.Handler) http.Handler
	Renderer *Renderer
	Site     SiteInfo
	BaseURL  string
	IsSecure bool
	Logger   *slog.Logger
}

// NewPremiumHandler creates a new PremiumHandler.
func NewPremiumHandler(cfg PremiumHandlerConfig) *PremiumHandler {
	limit := cfg.Limit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	return &PremiumHandler{
		payments:     cfg.Payments,
		entitlements: cfg.Entitlements,
		gateway:      cfg.Gateway,
		sessions:     cfg.Sessions,
		limit:        limit,
		renderer:     cfg.Renderer,
		site:         cfg.Site,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		isSecure:     cfg.IsSecure,
		logger:       cfg.Logger,
	}
}

// RegisterRoutes registers premium routes on the provided mux.
func (h *PremiumHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /premium", h.ShowPremium)
	mux.Handle("POST /payment-success", h.limit(http.HandlerFunc(h.ConfirmPayment)))
	mux.Handle("GET /payment-success", h.limit(http.HandlerFunc(h.PaymentReturn)))
}

// MockCheckout carries a pre-signed confirmation for the development gateway.
type MockCheckout struct {
	PaymentID string
	Signature string
}

// PremiumPageData is the template data for the checkout page.
type PremiumPageData struct {
	pageData
	Provider    string
	PublicKey   string
	Order       *domain.Order
	Description string
	ReturnURL   string
	Entitlement *domain.Entitlement
	Mock        *MockCheckout
}

// ShowPremium creates a gateway order and renders the checkout page.
// Every visit creates a new order; unpaid orders simply lapse at the gateway.
func (h *PremiumHandler) ShowPremium(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := csrf.EnsureToken(w, r, h.isSecure)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	order, err := h.payments.CreateOrder(ctx)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	ent, err := h.entitlements.Active(ctx, session.PaymentID(ctx))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	data := PremiumPageData{
		pageData:    pageData{SiteInfo: h.site, CurrentPath: "/premium", CSRFToken: token},
		Provider:    h.gateway.Name(),
		PublicKey:   h.gateway.PublicKey(),
		Order:       order,
		Description: fmt.Sprintf("Unlimited conversions for %d days", h.site.PremiumDays),
		ReturnURL:   h.baseURL + "/payment-success",
		Entitlement: ent,
	}

	if signer, ok := h.gateway.(mockSigner); ok {
		paymentID := signer.NewPaymentID()
		data.Mock = &MockCheckout{
			PaymentID: paymentID,
			Signature: signer.Sign(order.ID, paymentID),
		}
	}

	h.renderer.RenderHTTP(w, "premium", data)
}

// ConfirmPayment verifies the checkout result posted by the premium page,
// grants premium and stamps the session with the payment id.
func (h *PremiumHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	const op = "handler.confirm_payment"

	if err := r.ParseForm(); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "The payment confirmation could not be read"))
		return
	}
	if !csrf.ValidateRequest(r) {
		ErrorResponse(w, r, h.logger, domain.Forbidden(op, "Your session expired. Reload the page and try again."))
		return
	}

	h.confirm(w, r, confirmationFromForm(r))
}

// PaymentReturn handles Stripe's redirect back after an off-site
// authentication step. The payment intent id is verified with Stripe itself,
// so the request carries no CSRF token.
func (h *PremiumHandler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	if h.gateway.Name() != "stripe" {
		NotFoundResponse(w, r, h.logger)
		return
	}

	intentID := r.URL.Query().Get("payment_intent")
	h.confirm(w, r, domain.PaymentConfirmation{OrderID: intentID, PaymentID: intentID})
}

func (h *PremiumHandler) confirm(w http.ResponseWriter, r *http.Request, conf domain.PaymentConfirmation) {
	ent, err := h.payments.Confirm(r.Context(), conf)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.sessions.SetPaymentID(w, ent.PaymentID); err != nil {
		// The entitlement exists; only this browser misses out until it
		// confirms again, which is a no-op replay.
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// confirmationFromForm reads the generic field names the checkout page posts,
// falling back to the names Razorpay's own callback uses.
func confirmationFromForm(r *http.Request) domain.PaymentConfirmation {
	field := func(names ...string) string {
		for _, name := range names {
			if v := strings.TrimSpace(r.PostFormValue(name)); v != "" {
				return v
			}
		}
		return ""
	}
	return domain.PaymentConfirmation{
		OrderID:   field("order_id", "razorpay_order_id"),
		PaymentID: field("payment_id", "razorpay_payment_id"),
		Signature: field("signature", "razorpay_signature"),
	}
}
