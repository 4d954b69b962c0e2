// Package service contains the business logic layer.
//
// This file implements the entitlement checker: does a session's payment
// id map to a premium record that has not expired?
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService defines read operations on premium entitlements.
type EntitlementService interface {
	// IsPremium reports whether paymentID has an entitlement with
	// expiry >= today. An empty paymentID is never premium.
	IsPremium(ctx context.Context, paymentID string) (bool, error)

	// Active returns the active entitlement for paymentID, or nil.
	Active(ctx context.Context, paymentID string) (*domain.Entitlement, error)
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	queries  *repository.Queries
	calendar Calendar
	logger   *slog.Logger
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(queries *repository.Queries, calendar Calendar, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		queries:  queries,
		calendar: calendar,
		logger:   logger,
	}
}

func (s *entitlementService) IsPremium(ctx context.Context, paymentID string) (bool, error) {
	e, err := s.Active(ctx, paymentID)
	if err != nil {
		return false, err
	}
	return e != nil, nil
}

func (s *entitlementService) Active(ctx context.Context, paymentID string) (*domain.Entitlement, error) {
	const op = "entitlement.active"

	if paymentID == "" {
		return nil, nil
	}

	today := s.calendar.Today()
	row, err := s.queries.GetActiveEntitlement(ctx, paymentID, today.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to look up entitlement")
	}

	return entitlementFromRow(row, op)
}

func entitlementFromRow(row repository.PremiumEntitlement, op string) (*domain.Entitlement, error) {
	expiry, err := domain.ParseDay(row.Expiry)
	if err != nil {
		return nil, domain.Internal(err, op, "stored entitlement has a malformed expiry")
	}
	return &domain.Entitlement{
		PaymentID: row.PaymentID,
		OrderID:   row.OrderID,
		Expiry:    expiry,
		CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
	}, nil
}
