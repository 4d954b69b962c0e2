// Package service contains the business logic layer.
//
// This file implements the premium payment flow:
// Unpaid -> OrderCreated (gateway order) -> Entitled (verified, row written).
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/convertly/internal/billing"
	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/metrics"
	"github.com/DukeRupert/convertly/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// PaymentService defines operations for buying premium access.
type PaymentService interface {
	// CreateOrder creates a gateway order for the premium price. Nothing is
	// stored locally; every call creates a new order.
	CreateOrder(ctx context.Context) (*domain.Order, error)

	// Confirm verifies a checkout confirmation and writes the entitlement.
	// Any verification problem yields a payment error and writes nothing.
	Confirm(ctx context.Context, conf domain.PaymentConfirmation) (*domain.Entitlement, error)
}

// PaymentConfig holds the premium product definition.
type PaymentConfig struct {
	Amount   int64
	Currency string
	Days     int
}

// =============================================================================
// Implementation
// =============================================================================

type paymentService struct {
	queries  *repository.Queries
	gateway  billing.Gateway
	cfg      PaymentConfig
	calendar Calendar
	logger   *slog.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(queries *repository.Queries, gateway billing.Gateway, cfg PaymentConfig, calendar Calendar, logger *slog.Logger) PaymentService {
	if cfg.Days <= 0 {
		cfg.Days = domain.DefaultEntitlementDays
	}
	return &paymentService{
		queries:  queries,
		gateway:  gateway,
		cfg:      cfg,
		calendar: calendar,
		logger:   logger,
	}
}

func (s *paymentService) CreateOrder(ctx context.Context) (*domain.Order, error) {
	const op = "payment.create_order"

	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	order, err := s.gateway.CreateOrder(ctx, billing.OrderRequest{
		Amount:   s.cfg.Amount,
		Currency: s.cfg.Currency,
		Receipt:  receipt,
	})
	if err != nil {
		metrics.PaymentOrder("failed")
		s.logger.Error("failed to create payment order",
			"gateway", s.gateway.Name(),
			"receipt", receipt,
			"error", err,
		)
		return nil, domain.Gateway(err, op, "The payment service is unavailable. Please try again later.")
	}

	metrics.PaymentOrder("created")
	s.logger.Info("payment order created",
		"gateway", s.gateway.Name(),
		"order_id", order.ID,
		"amount", order.Amount,
		"currency", order.Currency,
	)
	return order, nil
}

func (s *paymentService) Confirm(ctx context.Context, conf domain.PaymentConfirmation) (*domain.Entitlement, error) {
	const op = "payment.confirm"

	if !conf.Complete() {
		metrics.PaymentVerification("rejected")
		s.logger.Warn("incomplete payment confirmation",
			"order_id", conf.OrderID,
			"payment_id", conf.PaymentID,
		)
		return nil, domain.PaymentFailed(nil, op)
	}

	if err := s.gateway.VerifyPayment(ctx, conf); err != nil {
		if billing.IsVerificationFailed(err) {
			metrics.PaymentVerification("rejected")
			s.logger.Warn("payment verification failed",
				"gateway", s.gateway.Name(),
				"order_id", conf.OrderID,
				"payment_id", conf.PaymentID,
				"error", err,
			)
		} else {
			metrics.PaymentVerification("error")
			s.logger.Error("payment gateway error during verification",
				"gateway", s.gateway.Name(),
				"order_id", conf.OrderID,
				"payment_id", conf.PaymentID,
				"error", err,
			)
		}
		return nil, domain.PaymentFailed(err, op)
	}
	metrics.PaymentVerification("verified")

	now := s.calendar.Now()
	expiry := domain.ExpiryFrom(s.calendar.Today(), s.cfg.Days)

	created, err := s.queries.CreateEntitlement(ctx, repository.CreateEntitlementParams{
		PaymentID: conf.PaymentID,
		OrderID:   conf.OrderID,
		Expiry:    expiry.String(),
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to save entitlement")
	}

	if !created {
		// Replayed confirmation: the original grant stands.
		s.logger.Info("payment already granted", "payment_id", conf.PaymentID)
		row, err := s.queries.GetEntitlement(ctx, conf.PaymentID)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to load existing entitlement")
		}
		return entitlementFromRow(row, op)
	}

	metrics.EntitlementsGranted.Inc()
	s.logger.Info("premium entitlement granted",
		"payment_id", conf.PaymentID,
		"order_id", conf.OrderID,
		"expiry", expiry.String(),
	)

	return &domain.Entitlement{
		PaymentID: conf.PaymentID,
		OrderID:   conf.OrderID,
		Expiry:    expiry,
		CreatedAt: time.Unix(now.Unix(), 0).UTC(),
	}, nil
}
