// Package billing talks to the payment gateway that sells premium access.
//
// Gateway implementations:
//   - razorpay: Razorpay Orders API + checkout signature verification
//   - stripe:   Stripe PaymentIntents
//   - mock:     local HMAC signer for development and tests
package billing

import (
	"context"
	"errors"

	"github.com/DukeRupert/convertly/internal/domain"
)

// ErrVerificationFailed is returned by VerifyPayment when the gateway says the
// confirmation is not genuine (bad signature, unpaid intent, wrong amount).
// Any other error from VerifyPayment is a transport or API failure.
var ErrVerificationFailed = errors.New("payment verification failed")

// OrderRequest describes the order to create at the gateway.
type OrderRequest struct {
	Amount   int64 // minor units
	Currency string
	Receipt  string
}

// Gateway defines the operations the payment flow needs from a provider.
type Gateway interface {
	// Name identifies the provider ("razorpay", "stripe", "mock").
	Name() string

	// PublicKey is the key the checkout page needs (Razorpay key id,
	// Stripe publishable key). Empty for mock.
	PublicKey() string

	// CreateOrder creates an order for the given amount. Nothing is
	// persisted locally.
	CreateOrder(ctx context.Context, req OrderRequest) (*domain.Order, error)

	// VerifyPayment checks a client-submitted confirmation. Returns
	// ErrVerificationFailed (possibly wrapped) when it is not genuine.
	VerifyPayment(ctx context.Context, conf domain.PaymentConfirmation) error
}

// IsVerificationFailed reports whether err means the gateway rejected the payment.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}
