package domain

import (
	"context"

	"github.com/smallbiznis/meterreadings/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// ReadingKeys returns the (account, reading time) of every persisted
	// reading of the given accounts. No accounts means no keys.
	ReadingKeys(ctx context.Context, db *gorm.DB, accountIDs []int64) ([]ReadingKey, error)

	// BulkInsert writes all readings in one transaction or none of them.
	BulkInsert(ctx context.Context, db *gorm.DB, readings []MeterReading, batchSize int) error
	// InsertIgnoreConflict reports whether the reading was written; an
	// existing (account, reading time) pair is skipped without error.
	InsertIgnoreConflict(ctx context.Context, db *gorm.DB, reading *MeterReading) (bool, error)

	ListByAccount(ctx context.Context, db *gorm.DB, accountID int64, after *pagination.Cursor, limit int) ([]MeterReading, error)

	InsertUpload(ctx context.Context, db *gorm.DB, batch *UploadBatch) error
	FindUpload(ctx context.Context, db *gorm.DB, id string) (*UploadBatch, error)
}
