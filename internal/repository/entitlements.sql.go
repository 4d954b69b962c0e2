package repository

import "context"

const createEntitlement = `
INSERT INTO premium_entitlements (payment_id, order_id, expiry, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (payment_id) DO NOTHING
`

type CreateEntitlementParams struct {
	PaymentID string
	OrderID   string
	Expiry    string
	CreatedAt int64
}

// CreateEntitlement inserts an entitlement. Replaying an existing payment id
// is a no-op and reports created=false.
func (q *Queries) CreateEntitlement(ctx context.Context, arg CreateEntitlementParams) (bool, error) {
	result, err := q.db.ExecContext(ctx, q.rebind(createEntitlement),
		arg.PaymentID, arg.OrderID, arg.Expiry, arg.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const getActiveEntitlement = `
SELECT payment_id, order_id, expiry, created_at
FROM premium_entitlements
WHERE payment_id = ? AND expiry >= ?
ORDER BY expiry DESC
LIMIT 1
`

// GetActiveEntitlement returns the entitlement for paymentID whose expiry is
// on or after today. Returns sql.ErrNoRows when there is none.
func (q *Queries) GetActiveEntitlement(ctx context.Context, paymentID, today string) (PremiumEntitlement, error) {
	var e PremiumEntitlement
	err := q.db.QueryRowContext(ctx, q.rebind(getActiveEntitlement), paymentID, today).Scan(
		&e.PaymentID,
		&e.OrderID,
		&e.Expiry,
		&e.CreatedAt,
	)
	return e, err
}

const countEntitlements = `
SELECT COUNT(*) FROM premium_entitlements WHERE payment_id = ?
`

// CountEntitlements returns how many rows exist for paymentID.
func (q *Queries) CountEntitlements(ctx context.Context, paymentID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, q.rebind(countEntitlements), paymentID).Scan(&n)
	return n, err
}

const getEntitlement = `
SELECT payment_id, order_id, expiry, created_at
FROM premium_entitlements
WHERE payment_id = ?
`

// GetEntitlement returns the entitlement for paymentID regardless of expiry.
func (q *Queries) GetEntitlement(ctx context.Context, paymentID string) (PremiumEntitlement, error) {
	var e PremiumEntitlement
	err := q.db.QueryRowContext(ctx, q.rebind(getEntitlement), paymentID).Scan(
		&e.PaymentID,
		&e.OrderID,
		&e.Expiry,
		&e.CreatedAt,
	)
	return e, err
}
