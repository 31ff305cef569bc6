package domain

import (
	"context"
	"io"
	"time"

	"github.com/smallbiznis/meterreadings/pkg/db/pagination"
)

type Service interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
	ListByAccount(ctx context.Context, req ListRequest) (*ListResponse, error)
	GetUpload(ctx context.Context, id string) (*UploadBatch, error)
}

// UploadRequest carries one uploaded file. Size is the declared size in
// bytes; a negative value means unknown.
type UploadRequest struct {
	FileName string
	Size     int64
	Content  io.Reader
}

// UploadResult is the outcome reported to the uploader.
type UploadResult struct {
	UploadID string `json:"-"`
	Success  int    `json:"success"`
	Failed   int    `json:"failed"`
}

type ListRequest struct {
	AccountID string
	pagination.Pagination
}

type ReadingResponse struct {
	ID         string    `json:"id"`
	AccountID  int64     `json:"account_id"`
	ReadingAt  time.Time `json:"reading_at"`
	Value      string    `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

type ListResponse struct {
	Data     []ReadingResponse   `json:"data"`
	PageInfo pagination.PageInfo `json:"page_info"`
}
