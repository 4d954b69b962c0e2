package repository_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DukeRupert/convertly/internal/repository"
	"github.com/DukeRupert/convertly/internal/repository/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetActiveEntitlement_ComparesExpiryToToday(t *testing.T) {
	q, _ := testutil.NewTestQueries(t)
	ctx := context.Background()

	created, err := q.CreateEntitlement(ctx, repository.CreateEntitlementParams{
		PaymentID: "pay_123",
		OrderID:   "order_123",
		Expiry:    "2026-11-17",
		CreatedAt: 1,
	})
	require.NoError(t, err)
	assert.True(t, created)

	e, err := q.GetActiveEntitlement(ctx, "pay_123", "2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, "order_123", e.OrderID)

	_, err = q.GetActiveEntitlement(ctx, "pay_123", "2026-11-17")
	assert.NoError(t, err, "expiry day itself is still valid")

	_, err = q.GetActiveEntitlement(ctx, "pay_123", "2026-11-18")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = q.GetActiveEntitlement(ctx, "pay_other", "2026-10-18")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateEntitlement_ReplayDoesNotExtendExpiry(t *testing.T) {
	q, _ := testutil.NewTestQueries(t)
	ctx := context.Background()

	_, err := q.CreateEntitlement(ctx, repository.CreateEntitlementParams{PaymentID: "pay_1", Expiry: "2026-11-17", CreatedAt: 1})
	require.NoError(t, err)

	created, err := q.CreateEntitlement(ctx, repository.CreateEntitlementParams{PaymentID: "pay_1", Expiry: "2027-01-01", CreatedAt: 2})
	require.NoError(t, err)
	assert.False(t, created)

	n, err := q.CountEntitlements(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = q.GetActiveEntitlement(ctx, "pay_1", "2026-12-01")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
