// Package domain contains core business types and interfaces.
//
// This file defines premium entitlements and the payment types that create them.
package domain

import "time"

// DefaultEntitlementDays is how long a one-time payment unlocks unlimited use.
const DefaultEntitlementDays = 30

// Entitlement grants unlimited conversions until Expiry (inclusive).
// Written once by the payment flow; never updated or deleted.
type Entitlement struct {
	PaymentID string
	OrderID   string
	Expiry    Day
	CreatedAt time.Time
}


// ExpiryFrom returns the expiry day for an entitlement granted on today.
func ExpiryFrom(today Day, days int) Day {
	return today.AddDays(days)
}

// =============================================================================
// Payment
// =============================================================================

// Order is a gateway order for the premium price. Not persisted locally.
type Order struct {
	ID           string
	Amount       int64 // minor units (paise, cents)
	Currency     string
	Receipt      string
	ClientSecret string // Stripe only; empty for Razorpay
}

// PaymentConfirmation is what the client posts back after checkout.
type PaymentConfirmation struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Complete reports whether the identifiers needed for verification are present.
// The signature is checked by the gateway itself.
func (c PaymentConfirmation) Complete() bool {
	return c.OrderID != "" && c.PaymentID != ""
}
