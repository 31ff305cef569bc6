package domain

import (
	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
)

// Snapshot is the persisted state an upload is validated against. It is
// taken once per upload and never refreshed while the upload runs.
type Snapshot struct {
	Accounts accountdomain.IDSet
	Prior    PairSet
	Latest   LatestByAccount
}

// NewSnapshot builds the prior pair set and per-account latest timestamps
// from the persisted reading keys.
func NewSnapshot(accounts accountdomain.IDSet, keys []ReadingKey) Snapshot {
	snap := Snapshot{
		Accounts: accounts,
		Prior:    make(PairSet, len(keys)),
		Latest:   make(LatestByAccount),
	}
	if snap.Accounts == nil {
		snap.Accounts = accountdomain.NewIDSet()
	}
	for _, k := range keys {
		snap.Prior.Add(NewPair(k.AccountID, k.ReadingAt))
		snap.Latest.Observe(k.AccountID, k.ReadingAt)
	}
	return snap
}
