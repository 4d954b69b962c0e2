package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

// stripeGateway sells premium access as a one-off PaymentIntent. The
// intent id doubles as order id and payment id.
type stripeGateway struct {
	publishableKey string
	amount         int64
	currency       string
}

// NewStripeGateway creates a Gateway backed by Stripe PaymentIntents.
//
// The secretKey is used to authenticate Stripe API calls. amount and
// currency are what a confirmed intent must match to be accepted.
func NewStripeGateway(secretKey, publishableKey string, amount int64, currency string) Gateway {
	stripe.Key = secretKey

	return &stripeGateway{
		publishableKey: publishableKey,
		amount:         amount,
		currency:       strings.ToLower(currency),
	}
}

func (g *stripeGateway) Name() string      { return "stripe" }
func (g *stripeGateway) PublicKey() string { return g.publishableKey }

func (g *stripeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*domain.Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("receipt", req.Receipt)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	return &domain.Order{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		Receipt:      req.Receipt,
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (g *stripeGateway) VerifyPayment(ctx context.Context, conf domain.PaymentConfirmation) error {
	if !conf.Complete() || conf.OrderID != conf.PaymentID {
		return ErrVerificationFailed
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(conf.PaymentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return fmt.Errorf("%w: unknown payment intent", ErrVerificationFailed)
		}
		return fmt.Errorf("stripe get payment intent: %w", err)
	}

	switch {
	case pi.Status != stripe.PaymentIntentStatusSucceeded:
		return fmt.Errorf("%w: intent status %s", ErrVerificationFailed, pi.Status)
	case pi.Amount != g.amount:
		return fmt.Errorf("%w: amount %d", ErrVerificationFailed, pi.Amount)
	case string(pi.Currency) != g.currency:
		return fmt.Errorf("%w: currency %s", ErrVerificationFailed, pi.Currency)
	}
	return nil
}
