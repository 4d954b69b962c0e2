package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	got  map[string]interface{}
	resp map[string]interface{}
	err  error
}

func (f *fakeOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.got = data
	return f.resp, f.err
}

func TestRazorpayGateway_CreateOrder(t *testing.T) {
	orders := &fakeOrders{resp: map[string]interface{}{
		"id":       "order_ABC",
		"amount":   float64(9900),
		"currency": "INR",
	}}
	g := &razorpayGateway{keyID: "rzp_test", keySecret: "s3cret", orders: orders}

	order, err := g.CreateOrder(context.Background(), OrderRequest{Amount: 9900, Currency: "INR", Receipt: "rcpt_1"})
	require.NoError(t, err)

	assert.Equal(t, "order_ABC", order.ID)
	assert.Equal(t, int64(9900), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, 1, orders.got["payment_capture"])
	assert.Equal(t, int64(9900), orders.got["amount"])
	assert.Equal(t, "rcpt_1", orders.got["receipt"])
	assert.Equal(t, "rzp_test", g.PublicKey())
}

func TestRazorpayGateway_CreateOrderErrors(t *testing.T) {
	g := &razorpayGateway{orders: &fakeOrders{err: errors.New("boom")}}
	_, err := g.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR"})
	assert.ErrorContains(t, err, "boom")
	assert.False(t, IsVerificationFailed(err))

	g = &razorpayGateway{orders: &fakeOrders{resp: map[string]interface{}{}}}
	_, err = g.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR"})
	assert.ErrorContains(t, err, "no id")
}

func TestRazorpayGateway_VerifyPayment(t *testing.T) {
	const secret = "s3cret"
	g := &razorpayGateway{keySecret: secret}
	signer := NewMockGateway(secret)

	valid := domain.PaymentConfirmation{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: signer.Sign("order_1", "pay_1"),
	}
	assert.NoError(t, g.VerifyPayment(context.Background(), valid))

	tampered := valid
	tampered.Signature = signer.Sign("order_1", "pay_2")
	assert.True(t, IsVerificationFailed(g.VerifyPayment(context.Background(), tampered)))

	swapped := valid
	swapped.PaymentID = "pay_2"
	assert.True(t, IsVerificationFailed(g.VerifyPayment(context.Background(), swapped)))

	missing := valid
	missing.Signature = ""
	assert.True(t, IsVerificationFailed(g.VerifyPayment(context.Background(), missing)))
}

func TestMockGateway(t *testing.T) {
	g := NewMockGateway("dev-secret")
	ctx := context.Background()

	order, err := g.CreateOrder(ctx, OrderRequest{Amount: 500, Currency: "USD", Receipt: "r"})
	require.NoError(t, err)
	assert.Contains(t, order.ID, "order_mock_")

	paymentID := g.NewPaymentID()
	conf := domain.PaymentConfirmation{OrderID: order.ID, PaymentID: paymentID, Signature: g.Sign(order.ID, paymentID)}
	assert.NoError(t, g.VerifyPayment(ctx, conf))

	other := NewMockGateway("other-secret")
	assert.True(t, IsVerificationFailed(other.VerifyPayment(ctx, conf)))
}
