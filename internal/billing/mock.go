package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/google/uuid"
)

// MockGateway creates local orders and accepts confirmations signed with
// the same scheme Razorpay uses. Development and tests only.
type MockGateway struct {
	secret string
}

// NewMockGateway creates a MockGateway that signs with secret.
func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{secret: secret}
}

func (g *MockGateway) Name() string      { return "mock" }
func (g *MockGateway) PublicKey() string { return "" }

func (g *MockGateway) CreateOrder(ctx context.Context, req OrderRequest) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.Order{
		ID:       "order_mock_" + uuid.NewString(),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
	}, nil
}

func (g *MockGateway) VerifyPayment(ctx context.Context, conf domain.PaymentConfirmation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return verifyCheckoutSignature(conf, g.secret)
}

// Sign returns the signature a real checkout would hand back for the pair.
func (g *MockGateway) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewPaymentID returns a fresh mock payment id.
func (g *MockGateway) NewPaymentID() string {
	return "pay_mock_" + uuid.NewString()
}
