// Package seed bootstraps the account directory from a reference CSV file.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
	accountrepo "github.com/smallbiznis/meterreadings/internal/account/repository"
	"gorm.io/gorm"
)

// LoadAccountsCSV parses AccountId,FirstName,LastName rows. The first row is
// a header. Rows whose id does not parse are skipped; blank names become nil.
func LoadAccountsCSV(r io.Reader) ([]accountdomain.Account, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var (
		accounts []accountdomain.Account
		seen     = map[int64]struct{}{}
		header   = true
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read accounts csv: %w", err)
		}
		if header {
			header = false
			continue
		}

		id, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 32)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		accounts = append(accounts, accountdomain.Account{
			ID:        id,
			FirstName: optionalField(record, 1),
			LastName:  optionalField(record, 2),
		})
	}
	return accounts, nil
}

func optionalField(record []string, idx int) *string {
	if idx >= len(record) {
		return nil
	}
	v := strings.TrimSpace(record[idx])
	if v == "" {
		return nil
	}
	return &v
}

// EnsureAccounts inserts the accounts in one transaction, leaving existing
// ids untouched. It returns the number of new rows.
func EnsureAccounts(ctx context.Context, db *gorm.DB, accounts []accountdomain.Account) (int64, error) {
	if db == nil {
		return 0, errors.New("seed database handle is required")
	}
	if len(accounts) == 0 {
		return 0, nil
	}

	repo := accountrepo.Provide()
	var inserted int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repo.InsertIgnoreExisting(ctx, tx, accounts)
		inserted = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("seed accounts: %w", err)
	}
	return inserted, nil
}

func EnsureAccountsFromFile(ctx context.Context, db *gorm.DB, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	accounts, err := LoadAccountsCSV(f)
	if err != nil {
		return 0, err
	}
	return EnsureAccounts(ctx, db, accounts)
}
