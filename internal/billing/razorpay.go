package billing

import (
	"context"
	"fmt"

	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// orderCreator is the part of the Razorpay client used here.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// razorpayGateway is the Razorpay implementation of Gateway.
type razorpayGateway struct {
	keyID     string
	keySecret string
	orders    orderCreator
}

// NewRazorpayGateway creates a Gateway backed by the Razorpay API.
func NewRazorpayGateway(keyID, keySecret string) Gateway {
	client := razorpay.NewClient(keyID, keySecret)
	return &razorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		orders:    client.Order,
	}
}

func (g *razorpayGateway) Name() string      { return "razorpay" }
func (g *razorpayGateway) PublicKey() string { return g.keyID }

// CreateOrder creates an auto-captured Razorpay order.
func (g *razorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
	}
	resp, err := g.orders.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	id, _ := resp["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay create order: response has no id")
	}

	order := &domain.Order{
		ID:       id,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
	}
	// Trust the gateway's echo of the amount when it sends one.
	if amount, ok := resp["amount"].(float64); ok {
		order.Amount = int64(amount)
	}
	if currency, ok := resp["currency"].(string); ok && currency != "" {
		order.Currency = currency
	}
	return order, nil
}

// VerifyPayment checks the checkout signature, an HMAC-SHA256 of
// "order_id|payment_id" keyed with the API secret.
func (g *razorpayGateway) VerifyPayment(ctx context.Context, conf domain.PaymentConfirmation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return verifyCheckoutSignature(conf, g.keySecret)
}

func verifyCheckoutSignature(conf domain.PaymentConfirmation, secret string) error {
	if !conf.Complete() || conf.Signature == "" {
		return ErrVerificationFailed
	}
	params := map[string]interface{}{
		"razorpay_order_id":   conf.OrderID,
		"razorpay_payment_id": conf.PaymentID,
	}
	if !utils.VerifyPaymentSignature(params, conf.Signature, secret) {
		return ErrVerificationFailed
	}
	return nil
}
