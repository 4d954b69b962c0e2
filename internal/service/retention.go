// Package service contains the business logic layer.
//
// This file implements retention: stored files and old usage counters are
// purged on a schedule. Entitlements are never deleted.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/metrics"
	"github.com/DukeRupert/convertly/internal/repository"
	"github.com/DukeRupert/convertly/internal/storage"
)

// purgeBatchSize bounds how many conversions one pass loads at a time.
const purgeBatchSize = 200

// =============================================================================
// Interface Definition
// =============================================================================

// RetentionService removes data that is no longer needed.
type RetentionService interface {
	// PurgeFiles deletes uploads, outputs and their conversion records older
	// than the file retention period. Returns the number of conversions removed.
	PurgeFiles(ctx context.Context) (int, error)

	// PurgeUsage deletes daily usage counters older than the usage
	// retention period. Returns the number of rows removed.
	PurgeUsage(ctx context.Context) (int, error)
}

// RetentionConfig holds retention periods.
type RetentionConfig struct {
	FileRetention      time.Duration
	UsageRetentionDays int
}

// =============================================================================
// Implementation
// =============================================================================

type retentionService struct {
	queries  *repository.Queries
	uploads  storage.Storage
	outputs  storage.Storage
	cfg      RetentionConfig
	calendar Calendar
	logger   *slog.Logger
}

// NewRetentionService creates a new RetentionService.
func NewRetentionService(
	queries *repository.Queries,
	uploads storage.Storage,
	outputs storage.Storage,
	cfg RetentionConfig,
	calendar Calendar,
	logger *slog.Logger,
) RetentionService {
	return &retentionService{
		queries:  queries,
		uploads:  uploads,
		outputs:  outputs,
		cfg:      cfg,
		calendar: calendar,
		logger:   logger,
	}
}

func (s *retentionService) PurgeFiles(ctx context.Context) (int, error) {
	const op = "retention.purge_files"

	cutoff := s.calendar.Now().Add(-s.cfg.FileRetention).Unix()
	purged := 0

	for {
		batch, err := s.queries.ListConversionsBefore(ctx, cutoff, purgeBatchSize)
		if err != nil {
			return purged, domain.Internal(err, op, "failed to list expired conversions")
		}
		if len(batch) == 0 {
			break
		}

		for _, c := range batch {
			if err := s.purgeConversion(ctx, c); err != nil {
				// Keep the row so the next pass retries the files.
				s.logger.Warn("failed to purge conversion", "conversion_id", c.ID, "error", err)
				return purged, domain.Internal(err, op, "failed to delete stored files")
			}
			purged++
		}

		if len(batch) < purgeBatchSize {
			break
		}
	}

	metrics.Purged("files", purged)
	if purged > 0 {
		s.logger.Info("purged expired conversions", "count", purged)
	}
	return purged, nil
}

func (s *retentionService) purgeConversion(ctx context.Context, c repository.Conversion) error {
	if err := deleteObject(ctx, s.uploads, c.UploadKey); err != nil {
		return err
	}
	if err := deleteObject(ctx, s.outputs, c.OutputKey); err != nil {
		return err
	}
	return s.queries.DeleteConversion(ctx, c.ID)
}

// deleteObject treats a missing object or a key the store rejects as
// already gone, so one bad row cannot stall every later pass.
func deleteObject(ctx context.Context, store storage.Storage, key string) error {
	if key == "" {
		return nil
	}
	err := store.Delete(ctx, key)
	if storage.IsNotFound(err) || storage.IsInvalidKey(err) {
		return nil
	}
	return err
}

func (s *retentionService) PurgeUsage(ctx context.Context) (int, error) {
	const op = "retention.purge_usage"

	days := s.cfg.UsageRetentionDays
	if days < 1 {
		days = 1
	}
	cutoff := s.calendar.Today().AddDays(-days)

	n, err := s.queries.DeleteDailyUsageBefore(ctx, cutoff.String())
	if err != nil {
		return 0, domain.Internal(err, op, "failed to delete old usage counters")
	}

	metrics.Purged("usage", int(n))
	if n > 0 {
		s.logger.Info("purged old usage counters", "count", n, "before", cutoff.String())
	}
	return int(n), nil
}
