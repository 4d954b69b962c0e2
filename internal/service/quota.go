// Package service contains the business logic layer.
//
// This file implements the quota gate: premium sessions pass untouched,
// everyone else gets FREE_DAILY_LIMIT conversions per IP per day.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/metrics"
	"github.com/DukeRupert/convertly/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService defines operations for admitting conversions.
type QuotaService interface {
	// Admit decides whether ip may run one more conversion today. Premium
	// requests are admitted without touching the counter. Admission of a
	// free request increments the counter; a denial leaves it unchanged.
	Admit(ctx context.Context, ip string, premium bool) (*domain.QuotaDecision, error)

	// Usage returns today's usage for ip without changing it.
	Usage(ctx context.Context, ip string) (*domain.QuotaUsage, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	queries  *repository.Queries
	limit    int
	calendar Calendar
	logger   *slog.Logger
}

// NewQuotaService creates a new QuotaService allowing limit free conversions per day.
func NewQuotaService(queries *repository.Queries, limit int, calendar Calendar, logger *slog.Logger) QuotaService {
	return &quotaService{
		queries:  queries,
		limit:    limit,
		calendar: calendar,
		logger:   logger,
	}
}

func (s *quotaService) Admit(ctx context.Context, ip string, premium bool) (*domain.QuotaDecision, error) {
	const op = "quota.admit"

	if premium {
		metrics.QuotaDecision("premium")
		return &domain.QuotaDecision{Admitted: true, Premium: true, Limit: s.limit}, nil
	}

	today := s.calendar.Today()

	// The upsert inserts a fresh row unconditionally, so a zero limit has
	// to be refused before it runs.
	if s.limit <= 0 {
		return s.deny(ctx, ip, today)
	}

	count, err := s.queries.IncrementDailyUsage(ctx, repository.IncrementDailyUsageParams{
		IP:        ip,
		UsageDate: today.String(),
		Limit:     s.limit,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return s.deny(ctx, ip, today)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update usage counter")
	}

	metrics.QuotaDecision("admitted")
	return &domain.QuotaDecision{Admitted: true, Used: count, Limit: s.limit}, nil
}

func (s *quotaService) deny(ctx context.Context, ip string, today domain.Day) (*domain.QuotaDecision, error) {
	used, err := s.queries.GetDailyUsage(ctx, ip, today.String())
	if err != nil {
		// The decision stands without the count.
		s.logger.Warn("failed to read usage after denial", "ip", ip, "error", err)
		used = s.limit
	}

	s.logger.Info("daily quota exceeded",
		"ip", ip,
		"day", today.String(),
		"used", used,
		"limit", s.limit,
	)
	metrics.QuotaDecision("denied")
	return &domain.QuotaDecision{Admitted: false, Used: used, Limit: s.limit}, nil
}

func (s *quotaService) Usage(ctx context.Context, ip string) (*domain.QuotaUsage, error) {
	const op = "quota.usage"

	today := s.calendar.Today()
	used, err := s.queries.GetDailyUsage(ctx, ip, today.String())
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read usage counter")
	}

	usage := domain.NewQuotaUsage(today, used, s.limit)
	return &usage, nil
}
