package repository

import (
	"context"

	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() accountdomain.Repository {
	return &repo{}
}

func (r *repo) ListIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).Raw(`SELECT id FROM accounts`).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*accountdomain.Account, error) {
	var accounts []accountdomain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, first_name, last_name FROM accounts WHERE id = ?`,
		id,
	).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

func (r *repo) InsertIgnoreExisting(ctx context.Context, db *gorm.DB, accounts []accountdomain.Account) (int64, error) {
	if len(accounts) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		CreateInBatches(accounts, 500)
	return result.RowsAffected, result.Error
}
