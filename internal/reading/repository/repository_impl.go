package repository

import (
	"context"
	"time"

	readingdomain "github.com/smallbiznis/meterreadings/internal/reading/domain"
	"github.com/smallbiznis/meterreadings/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultInsertBatchSize = 500
	// keeps IN lists under the sqlite bound parameter limit
	accountChunkSize = 500
)

type repo struct{}

func Provide() readingdomain.Repository {
	return &repo{}
}

func (r *repo) ReadingKeys(ctx context.Context, db *gorm.DB, accountIDs []int64) ([]readingdomain.ReadingKey, error) {
	var keys []readingdomain.ReadingKey
	for start := 0; start < len(accountIDs); start += accountChunkSize {
		end := min(start+accountChunkSize, len(accountIDs))

		var chunk []readingdomain.ReadingKey
		err := db.WithContext(ctx).Raw(
			`SELECT account_id, reading_at FROM meter_readings WHERE account_id IN ?`,
			accountIDs[start:end],
		).Scan(&chunk).Error
		if err != nil {
			return nil, err
		}
		keys = append(keys, chunk...)
	}
	return keys, nil
}

func (r *repo) BulkInsert(ctx context.Context, db *gorm.DB, readings []readingdomain.MeterReading, batchSize int) error {
	if len(readings) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(readings, batchSize).Error
	})
}

func (r *repo) InsertIgnoreConflict(ctx context.Context, db *gorm.DB, reading *readingdomain.MeterReading) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "reading_at"}},
			DoNothing: true,
		}).
		Create(reading)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListByAccount(ctx context.Context, db *gorm.DB, accountID int64, after *pagination.Cursor, limit int) ([]readingdomain.MeterReading, error) {
	query := db.WithContext(ctx).
		Model(&readingdomain.MeterReading{}).
		Where("account_id = ?", accountID)

	if after != nil && after.ReadingAt != "" {
		at, err := time.Parse(time.RFC3339, after.ReadingAt)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		// (account_id, reading_at) is unique, so reading_at alone orders the page
		query = query.Where("reading_at > ?", at.UTC())
	}

	var items []readingdomain.MeterReading
	err := query.
		Order("reading_at ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertUpload(ctx context.Context, db *gorm.DB, batch *readingdomain.UploadBatch) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meter_reading_uploads (id, file_name, size_bytes, success, failed, reason_counts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		batch.ID,
		batch.FileName,
		batch.SizeBytes,
		batch.Success,
		batch.Failed,
		batch.ReasonCounts,
		batch.CreatedAt,
	).Error
}

func (r *repo) FindUpload(ctx context.Context, db *gorm.DB, id string) (*readingdomain.UploadBatch, error) {
	var batches []readingdomain.UploadBatch
	err := db.WithContext(ctx).Raw(
		`SELECT id, file_name, size_bytes, success, failed, reason_counts, created_at
		 FROM meter_reading_uploads WHERE id = ?`,
		id,
	).Scan(&batches).Error
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, nil
	}
	return &batches[0], nil
}
