package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	ListIDs(ctx context.Context, db *gorm.DB) ([]int64, error)
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Account, error)
	InsertIgnoreExisting(ctx context.Context, db *gorm.DB, accounts []Account) (int64, error)
}
