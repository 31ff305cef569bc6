package domain

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

type Service interface {
	// KnownIDs returns the account directory as a membership set.
	KnownIDs(ctx context.Context) (IDSet, error)
	GetByID(ctx context.Context, id string) (*Account, error)
}

// IDSet is a read-only set of account identifiers.
type IDSet map[int64]struct{}

func NewIDSet(ids ...int64) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

var (
	ErrInvalidID = errors.New("invalid_account_id")
	ErrNotFound  = errors.New("account_not_found")
)

func ParseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, ErrInvalidID
	}
	return id, nil
}
