package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// MeterReading is one accepted (account, timestamp, value) observation.
// The pair (AccountID, ReadingAt) is unique across the table.
type MeterReading struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID  int64        `json:"account_id" gorm:"not null;uniqueIndex:ux_meter_readings_account_reading_at,priority:1"`
	ReadingAt  time.Time    `json:"reading_at" gorm:"not null;uniqueIndex:ux_meter_readings_account_reading_at,priority:2"`
	Value      int          `json:"value" gorm:"not null"`
	RecordedAt time.Time    `json:"recorded_at" gorm:"not null"`
	UploadID   *string      `json:"upload_id,omitempty" gorm:"type:varchar(26);index"`
}

// TableName sets the database table name.
func (MeterReading) TableName() string { return "meter_readings" }

// Key returns the dedup identity of the reading.
func (r MeterReading) Key() Pair {
	return NewPair(r.AccountID, r.ReadingAt)
}

// UploadBatch is the audit record of a processed upload.
type UploadBatch struct {
	ID           string            `json:"id" gorm:"primaryKey;type:varchar(26)"`
	FileName     string            `json:"file_name" gorm:"type:varchar(255);not null"`
	SizeBytes    int64             `json:"size_bytes" gorm:"not null"`
	Success      int               `json:"success" gorm:"not null"`
	Failed       int               `json:"failed" gorm:"not null"`
	ReasonCounts datatypes.JSONMap `json:"reason_counts"`
	CreatedAt    time.Time         `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (UploadBatch) TableName() string { return "meter_reading_uploads" }

// ReadingKey is the projection of meter_readings loaded into a snapshot.
type ReadingKey struct {
	AccountID int64
	ReadingAt time.Time
}
