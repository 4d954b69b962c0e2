// Package service contains the business logic layer.
//
// This file implements the conversion flow: validate the upload, store it,
// convert it, store the output and record both for retention.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/DukeRupert/convertly/internal/domain"
	"github.com/DukeRupert/convertly/internal/metrics"
	"github.com/DukeRupert/convertly/internal/repository"
	"github.com/DukeRupert/convertly/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ConversionService defines operations for converting uploads.
type ConversionService interface {
	// Validate checks the upload and resolves the requested kind without
	// writing anything. Callers run it before the quota gate so malformed
	// requests do not use up free conversions.
	Validate(upload domain.Upload, kindValue string) (domain.ConversionKind, error)

	// Convert stores the upload, converts it and returns the output.
	Convert(ctx context.Context, ip string, upload domain.Upload, kind domain.ConversionKind) (*domain.ConversionResult, error)
}

// ConversionConfig holds limits for the conversion service.
type ConversionConfig struct {
	MaxUploadSize int64
	MaxConcurrent int64
}

// =============================================================================
// Implementation
// =============================================================================

type conversionService struct {
	queries   *repository.Queries
	uploads   storage.Storage
	outputs   storage.Storage
	converter ImageConverter
	sem       *semaphore.Weighted
	maxUpload int64
	now       func() time.Time
	logger    *slog.Logger
}

// NewConversionService creates a new ConversionService.
func NewConversionService(
	queries *repository.Queries,
	uploads storage.Storage,
	outputs storage.Storage,
	converter ImageConverter,
	cfg ConversionConfig,
	logger *slog.Logger,
) ConversionService {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = domain.MaxUploadSize
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &conversionService{
		queries:   queries,
		uploads:   uploads,
		outputs:   outputs,
		converter: converter,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		maxUpload: cfg.MaxUploadSize,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *conversionService) Validate(upload domain.Upload, kindValue string) (domain.ConversionKind, error) {
	const op = "conversion.validate"

	if !upload.Present || upload.Data == nil {
		return "", domain.Invalid(op, domain.MsgNoFilePart)
	}
	if upload.Filename == "" || domain.SanitizeFilename(upload.Filename) == "" {
		return "", domain.Invalid(op, domain.MsgNoSelectedFile)
	}
	if upload.Size > s.maxUpload {
		return "", domain.TooLarge(op, s.maxUpload)
	}

	kind, ok := domain.ParseConversionKind(kindValue)
	if !ok {
		metrics.ConversionObserved("unknown", metrics.StatusInvalid, 0)
		return "", domain.Invalid(op, domain.MsgInvalidConversionType)
	}
	return kind, nil
}

func (s *conversionService) Convert(ctx context.Context, ip string, upload domain.Upload, kind domain.ConversionKind) (*domain.ConversionResult, error) {
	const op = "conversion.convert"

	if _, err := s.Validate(upload, kind.String()); err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, domain.Internal(err, op, "conversion cancelled")
	}
	defer s.sem.Release(1)

	start := s.now()
	result, err := s.convert(ctx, ip, upload, kind)
	metrics.ConversionObserved(kind.String(), conversionStatus(err), s.now().Sub(start))
	return result, err
}

func (s *conversionService) convert(ctx context.Context, ip string, upload domain.Upload, kind domain.ConversionKind) (*domain.ConversionResult, error) {
	const op = "conversion.convert"

	data, err := io.ReadAll(io.LimitReader(upload.Data, s.maxUpload+1))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read upload")
	}
	if int64(len(data)) > s.maxUpload {
		return nil, domain.TooLarge(op, s.maxUpload)
	}

	id := uuid.NewString()
	name := domain.SanitizeFilename(upload.Filename)
	uploadKey := storage.ObjectKey(id, name)

	if _, err := s.uploads.Put(ctx, uploadKey, bytes.NewReader(data), storage.PutOptions{
		MaxSize: s.maxUpload,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to store upload")
	}

	converted, err := s.converter.Convert(bytes.NewReader(data), kind)
	if err != nil {
		s.logger.Info("conversion failed",
			"conversion_id", id,
			"kind", kind,
			"filename", name,
			"error", err,
		)
		s.recordUploadOnly(ctx, id, ip, kind, uploadKey)
		return nil, err
	}

	outName := domain.OutputFilename(name, kind)
	outputKey := storage.ObjectKey(id, outName)
	if _, err := s.outputs.Put(ctx, outputKey, bytes.NewReader(converted.Data), storage.PutOptions{
		ContentType: kind.ContentType(),
	}); err != nil {
		s.recordUploadOnly(ctx, id, ip, kind, uploadKey)
		return nil, domain.Internal(err, op, "failed to store output")
	}

	stored, err := s.outputs.Stat(ctx, outputKey)
	if err == nil && stored.Size != int64(len(converted.Data)) {
		err = fmt.Errorf("stored %d bytes, converted %d", stored.Size, len(converted.Data))
	}
	if err != nil {
		s.logger.Error("output missing after write", "conversion_id", id, "key", outputKey, "error", err)
		s.recordUploadOnly(ctx, id, ip, kind, uploadKey)
		return nil, domain.Codec(err, op, domain.MsgConversionFailed)
	}

	if err := s.queries.CreateConversion(ctx, repository.CreateConversionParams{
		ID:        id,
		IP:        ip,
		Kind:      kind.String(),
		UploadKey: uploadKey,
		OutputKey: outputKey,
		CreatedAt: s.now().Unix(),
	}); err != nil {
		// Retention will miss these files, but the user still gets the output.
		s.logger.Error("failed to record conversion", "conversion_id", id, "error", err)
	}

	s.logger.Debug("converted image",
		"conversion_id", id,
		"kind", kind,
		"source_format", converted.SourceFormat,
		"width", converted.Width,
		"height", converted.Height,
		"bytes", len(converted.Data),
	)

	return &domain.ConversionResult{
		ID:          id,
		Filename:    outName,
		ContentType: kind.ContentType(),
		Data:        converted.Data,
	}, nil
}

// recordUploadOnly keeps track of a stored upload whose conversion failed so
// retention still removes it.
func (s *conversionService) recordUploadOnly(ctx context.Context, id, ip string, kind domain.ConversionKind, uploadKey string) {
	if err := s.queries.CreateConversion(ctx, repository.CreateConversionParams{
		ID:        id,
		IP:        ip,
		Kind:      kind.String(),
		UploadKey: uploadKey,
		CreatedAt: s.now().Unix(),
	}); err != nil {
		s.logger.Error("failed to record failed conversion", "conversion_id", id, "error", err)
	}
}

func conversionStatus(err error) string {
	switch domain.ErrorCode(err) {
	case "":
		return metrics.StatusSuccess
	case domain.EINVALID, domain.ETOOLARGE:
		return metrics.StatusInvalid
	case domain.ECODEC:
		return metrics.StatusCodec
	default:
		return metrics.StatusError
	}
}
