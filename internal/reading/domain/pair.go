package domain

import "time"

// Pair identifies a reading for dedup purposes. Timestamps are reduced to
// unix seconds so values read back from the database compare equal
// regardless of their location.
type Pair struct {
	AccountID int64
	At        int64
}

func NewPair(accountID int64, readingAt time.Time) Pair {
	return Pair{AccountID: accountID, At: readingAt.Unix()}
}

// PairSet is a set of reading pairs.
type PairSet map[Pair]struct{}

func NewPairSet() PairSet {
	return make(PairSet)
}

func (s PairSet) Has(p Pair) bool {
	_, ok := s[p]
	return ok
}

func (s PairSet) Add(p Pair) {
	s[p] = struct{}{}
}

func (s PairSet) Len() int {
	return len(s)
}

// LatestLookup answers the most recent persisted reading time for an account.
type LatestLookup interface {
	LatestReadingAt(accountID int64) (time.Time, bool)
}

// LatestByAccount is a map-backed LatestLookup.
type LatestByAccount map[int64]time.Time

func (l LatestByAccount) LatestReadingAt(accountID int64) (time.Time, bool) {
	t, ok := l[accountID]
	return t, ok
}

// Observe records readingAt if it is later than the current latest value.
func (l LatestByAccount) Observe(accountID int64, readingAt time.Time) {
	if cur, ok := l[accountID]; !ok || readingAt.After(cur) {
		l[accountID] = readingAt
	}
}
