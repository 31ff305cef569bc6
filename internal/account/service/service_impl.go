package service

import (
	"context"

	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
	"github.com/smallbiznis/meterreadings/internal/cache"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  accountdomain.Repository
	Cache cache.AccountDirectoryCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  accountdomain.Repository
	cache cache.AccountDirectoryCache
}

func New(p Params) accountdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		repo:  p.Repo,
		cache: p.Cache,
	}
}

func (s *Service) KnownIDs(ctx context.Context) (accountdomain.IDSet, error) {
	if s.cache != nil {
		if ids, ok := s.cache.GetIDs(); ok {
			return ids, nil
		}
	}

	ids, err := s.repo.ListIDs(ctx, s.db)
	if err != nil {
		return nil, err
	}

	set := accountdomain.NewIDSet(ids...)
	if s.cache != nil {
		s.cache.SetIDs(set)
	}
	s.log.Debug("account directory loaded", zap.Int("accounts", len(set)))
	return set, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	accountID, err := accountdomain.ParseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, accountdomain.ErrNotFound
	}
	return item, nil
}
