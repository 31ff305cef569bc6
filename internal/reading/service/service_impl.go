package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
	"github.com/smallbiznis/meterreadings/internal/clock"
	"github.com/smallbiznis/meterreadings/internal/config"
	obscontext "github.com/smallbiznis/meterreadings/internal/observability/context"
	obslog "github.com/smallbiznis/meterreadings/internal/observability/logger"
	"github.com/smallbiznis/meterreadings/internal/observability/metrics"
	"github.com/smallbiznis/meterreadings/internal/observability/tracing"
	"github.com/smallbiznis/meterreadings/internal/promexport"
	readingdomain "github.com/smallbiznis/meterreadings/internal/reading/domain"
	"github.com/smallbiznis/meterreadings/internal/reading/ingest"
	"github.com/smallbiznis/meterreadings/pkg/db/pagination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       readingdomain.Repository
	AccountSvc accountdomain.Service
	UploadCfg  *config.UploadConfigHolder `optional:"true"`
	Metrics    *metrics.Metrics           `optional:"true"`
	Prom       *promexport.Collector      `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       readingdomain.Repository
	accountSvc accountdomain.Service
	uploadCfg  *config.UploadConfigHolder
	metrics    *metrics.Metrics
	prom       *promexport.Collector
	tracer     trace.Tracer
}

func New(p Params) readingdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reading.service"),
		genID:      p.GenID,
		clock:      clk,
		repo:       p.Repo,
		accountSvc: p.AccountSvc,
		uploadCfg:  p.UploadCfg,
		metrics:    p.Metrics,
		prom:       p.Prom,
		tracer:     otel.Tracer("meterreadings/reading"),
	}
}

func (s *Service) Upload(ctx context.Context, req readingdomain.UploadRequest) (*readingdomain.UploadResult, error) {
	if req.Content == nil || req.Size == 0 {
		return nil, readingdomain.ErrNoFileProvided
	}

	cfg := s.uploadCfg.Get()
	if cfg.MaxUploadBytes > 0 && req.Size > cfg.MaxUploadBytes {
		return nil, readingdomain.ErrUploadTooLarge
	}

	startedAt := s.clock.Now()
	uploadID := ulid.MustNew(ulid.Timestamp(startedAt), ulid.DefaultEntropy()).String()
	ctx = obscontext.WithUploadID(ctx, uploadID)

	ctx, span := s.tracer.Start(ctx, "reading.upload", trace.WithAttributes(
		tracing.SafeAttributes(
			attribute.String("upload_id", uploadID),
			attribute.Int64("upload.size_bytes", req.Size),
		)...,
	))
	defer span.End()

	log := obslog.WithContext(ctx, s.log)

	content, err := readContent(req.Content, cfg.MaxUploadBytes)
	if err != nil {
		if !errors.Is(err, readingdomain.ErrUploadTooLarge) {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, "read")
		}
		return nil, err
	}

	snap, err := s.loadSnapshot(ctx, content)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "snapshot")
		return nil, err
	}

	ingestor := ingest.New(s.store(cfg.InsertBatchSize), s.clock, s.genID, s.log)
	result, err := ingestor.Ingest(ctx, bytes.NewReader(content), snap, ingest.Options{UploadID: uploadID})
	if err != nil {
		if !errors.Is(err, readingdomain.ErrNoFileProvided) {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, "ingest")
			log.Error("upload failed", zap.Error(err))
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("upload.success", result.Success),
		attribute.Int("upload.failed", result.Failed),
	)

	s.audit(ctx, log, uploadID, req, result, startedAt)
	s.record(ctx, result, s.clock.Now().Sub(startedAt))
	s.logSummary(log, req, result, cfg.MaxRejectionsLogged)

	return &readingdomain.UploadResult{
		UploadID: uploadID,
		Success:  result.Success,
		Failed:   result.Failed,
	}, nil
}

// readContent buffers the upload. Size may be unknown, so the limit is
// enforced on the bytes actually read.
func readContent(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, readingdomain.ErrUploadTooLarge
	}
	return data, nil
}

// loadSnapshot reads the account directory and the persisted readings of the
// accounts the upload refers to.
func (s *Service) loadSnapshot(ctx context.Context, content []byte) (readingdomain.Snapshot, error) {
	accounts, err := s.accountSvc.KnownIDs(ctx)
	if err != nil {
		return readingdomain.Snapshot{}, fmt.Errorf("load accounts: %w", err)
	}
	keys, err := s.repo.ReadingKeys(ctx, s.db, ingest.ReferencedAccounts(content, accounts))
	if err != nil {
		return readingdomain.Snapshot{}, fmt.Errorf("load existing readings: %w", err)
	}
	return readingdomain.NewSnapshot(accounts, keys), nil
}

// audit stores the upload summary. The readings are already committed, so a
// failure here is logged and does not change the reported outcome.
func (s *Service) audit(ctx context.Context, log *zap.Logger, uploadID string, req readingdomain.UploadRequest, result ingest.Result, createdAt time.Time) {
	counts := datatypes.JSONMap{}
	for reason, n := range result.ReasonCounts {
		counts[reason] = n
	}

	size := req.Size
	if size < 0 {
		size = 0
	}
	batch := &readingdomain.UploadBatch{
		ID:           uploadID,
		FileName:     truncate(strings.TrimSpace(req.FileName), 255),
		SizeBytes:    size,
		Success:      result.Success,
		Failed:       result.Failed,
		ReasonCounts: counts,
		CreatedAt:    createdAt,
	}
	if err := s.repo.InsertUpload(ctx, s.db, batch); err != nil {
		log.Warn("failed to store upload audit record", zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, result ingest.Result, elapsed time.Duration) {
	s.metrics.RecordUpload(ctx, result.Success, result.Failed, elapsed)
	s.prom.RecordUpload(result.Success, result.Failed)
	s.prom.RecordRows(promexport.OutcomeAccepted, "", result.Success)
	for reason, n := range result.ReasonCounts {
		s.metrics.RecordRowsRejected(ctx, reason, n)
		s.prom.RecordRows(promexport.OutcomeRejected, reason, n)
	}
}

func (s *Service) logSummary(log *zap.Logger, req readingdomain.UploadRequest, result ingest.Result, maxRejections int) {
	log.Info("upload processed",
		zap.String("file_name", req.FileName),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Any("reasons", result.ReasonCounts),
	)

	if maxRejections <= 0 || len(result.Rejections) == 0 || !log.Core().Enabled(zap.DebugLevel) {
		return
	}
	rejections := result.Rejections
	if len(rejections) > maxRejections {
		rejections = rejections[:maxRejections]
	}
	for _, r := range rejections {
		log.Debug("row rejected", zap.Int("line", r.Line), zap.String("reason", readingdomain.ReasonCode(r.Reason)))
	}
}

func (s *Service) store(batchSize int) ingest.Store {
	return &dbStore{db: s.db, repo: s.repo, batchSize: batchSize}
}

type dbStore struct {
	db        *gorm.DB
	repo      readingdomain.Repository
	batchSize int
}

func (d *dbStore) BulkInsert(ctx context.Context, readings []readingdomain.MeterReading) error {
	return d.repo.BulkInsert(ctx, d.db, readings, d.batchSize)
}

func (d *dbStore) InsertIgnoreConflict(ctx context.Context, reading *readingdomain.MeterReading) (bool, error) {
	return d.repo.InsertIgnoreConflict(ctx, d.db, reading)
}

func (s *Service) ListByAccount(ctx context.Context, req readingdomain.ListRequest) (*readingdomain.ListResponse, error) {
	account, err := s.accountSvc.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	var cursor *pagination.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err = pagination.DecodeCursor(token)
		if err != nil {
			return nil, err
		}
	}

	limit := req.Limit()
	items, err := s.repo.ListByAccount(ctx, s.db, account.ID, cursor, limit+1)
	if err != nil {
		return nil, err
	}

	page, pageInfo, err := pagination.BuildCursorPageInfo(items, limit, func(r readingdomain.MeterReading) pagination.Cursor {
		return pagination.Cursor{
			ID:        r.ID.String(),
			ReadingAt: r.ReadingAt.UTC().Format(time.RFC3339),
		}
	})
	if err != nil {
		return nil, err
	}

	data := make([]readingdomain.ReadingResponse, 0, len(page))
	for _, r := range page {
		data = append(data, toResponse(r))
	}
	return &readingdomain.ListResponse{Data: data, PageInfo: pageInfo}, nil
}

func (s *Service) GetUpload(ctx context.Context, id string) (*readingdomain.UploadBatch, error) {
	parsed, err := ulid.ParseStrict(strings.TrimSpace(id))
	if err != nil {
		return nil, readingdomain.ErrInvalidUploadID
	}

	batch, err := s.repo.FindUpload(ctx, s.db, parsed.String())
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, readingdomain.ErrUploadNotFound
	}
	return batch, nil
}

func toResponse(r readingdomain.MeterReading) readingdomain.ReadingResponse {
	return readingdomain.ReadingResponse{
		ID:         r.ID.String(),
		AccountID:  r.AccountID,
		ReadingAt:  r.ReadingAt.UTC(),
		Value:      fmt.Sprintf("%05d", r.Value),
		RecordedAt: r.RecordedAt.UTC(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
