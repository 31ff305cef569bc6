package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
	"github.com/smallbiznis/meterreadings/internal/clock"
	readingdomain "github.com/smallbiznis/meterreadings/internal/reading/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const header = "AccountId,MeterReadingDateTime,MeterReadValue,\n"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// memoryStore enforces the (account, reading time) uniqueness of the table.
type memoryStore struct {
	rows    map[readingdomain.Pair]readingdomain.MeterReading
	bulkErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[readingdomain.Pair]readingdomain.MeterReading{}}
}

func (s *memoryStore) BulkInsert(_ context.Context, readings []readingdomain.MeterReading) error {
	if s.bulkErr != nil {
		return s.bulkErr
	}
	for _, r := range readings {
		if _, ok := s.rows[r.Key()]; ok {
			return gorm.ErrDuplicatedKey
		}
	}
	for _, r := range readings {
		s.rows[r.Key()] = r
	}
	return nil
}

func (s *memoryStore) InsertIgnoreConflict(_ context.Context, r *readingdomain.MeterReading) (bool, error) {
	if _, ok := s.rows[r.Key()]; ok {
		return false, nil
	}
	s.rows[r.Key()] = *r
	return true, nil
}

func (s *memoryStore) snapshot(accounts accountdomain.IDSet) readingdomain.Snapshot {
	keys := make([]readingdomain.ReadingKey, 0, len(s.rows))
	for _, r := range s.rows {
		keys = append(keys, readingdomain.ReadingKey{AccountID: r.AccountID, ReadingAt: r.ReadingAt})
	}
	return readingdomain.NewSnapshot(accounts, keys)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) BulkInsert(ctx context.Context, readings []readingdomain.MeterReading) error {
	args := m.Called(ctx, readings)
	return args.Error(0)
}

func (m *mockStore) InsertIgnoreConflict(ctx context.Context, r *readingdomain.MeterReading) (bool, error) {
	args := m.Called(ctx, r)
	return args.Bool(0), args.Error(1)
}

func accounts() accountdomain.IDSet {
	return accountdomain.NewIDSet(2344, 2233, 8766, 2345)
}

func newIngestor(t *testing.T, store Store) *Ingestor {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(store, clock.NewFakeClock(fixedNow), node, nil)
}

func ingest(t *testing.T, store *memoryStore, body string) Result {
	t.Helper()
	res, err := newIngestor(t, store).Ingest(context.Background(), strings.NewReader(body), store.snapshot(accounts()), Options{})
	require.NoError(t, err)
	return res
}

func TestIngestEmptyStream(t *testing.T) {
	store := newMemoryStore()
	_, err := newIngestor(t, store).Ingest(context.Background(), strings.NewReader(""), store.snapshot(accounts()), Options{})
	assert.ErrorIs(t, err, readingdomain.ErrNoFileProvided)
}

func TestIngestHeaderOnly(t *testing.T) {
	res := ingest(t, newMemoryStore(), header)
	assert.Equal(t, 0, res.Success)
	assert.Equal(t, 0, res.Failed)
}

func TestIngestBlankLinesAreNotCounted(t *testing.T) {
	res := ingest(t, newMemoryStore(), "\n  \n"+header+"\r\n\n   \n")
	assert.Equal(t, 0, res.Success)
	assert.Equal(t, 0, res.Failed)
}

func TestIngestHappyPath(t *testing.T) {
	store := newMemoryStore()
	res := ingest(t, store, header+
		"2344,22/04/2019 09:24,01002,\n"+
		"2233,22/04/2019 12:25,00323,\n")

	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, store.rows, 2)
	for _, r := range res.Accepted {
		assert.NotZero(t, r.ID)
		assert.Equal(t, fixedNow, r.RecordedAt)
	}
}

func TestIngestHandlesBOMCRLFAndMissingTrailingNewline(t *testing.T) {
	store := newMemoryStore()
	res := ingest(t, store, "\uFEFF"+strings.TrimSuffix(header, "\n")+"\r\n"+
		"2344,22/04/2019 09:24,01002\r\n"+
		"2233,22/04/2019 12:25,00323")

	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 0, res.Failed)
}

func TestIngestMixedRows(t *testing.T) {
	store := newMemoryStore()
	res := ingest(t, store, header+
		"2344,22/04/2019 09:24,01002,\n"+
		"2344,22/04/2019 09:24,01002,\n"+
		"9999,22/04/2019 09:24,01002,\n"+
		"2233,22/04/2019 12:25,VOID,\n"+
		"8766,2019-04-22 12:25,00323,\n"+
		"8766\n")

	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 5, res.Failed)
	assert.Equal(t, map[string]int{
		"duplicate_reading":    1,
		"unknown_account":      1,
		"invalid_value_format": 1,
		"invalid_timestamp":    1,
		"malformed_row":        1,
	}, res.ReasonCounts)

	require.Len(t, res.Rejections, 5)
	assert.Equal(t, 3, res.Rejections[0].Line)
	assert.ErrorIs(t, res.Rejections[0].Reason, readingdomain.ErrDuplicateReading)
}

func TestIngestThirdOccurrenceIsAlsoDuplicate(t *testing.T) {
	store := newMemoryStore()
	row := "2344,22/04/2019 09:24,01002\n"
	res := ingest(t, store, header+row+row+row)

	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 2, res.ReasonCounts["duplicate_reading"])
}

func TestIngestInvalidFirstOccurrenceDoesNotBlockSecond(t *testing.T) {
	store := newMemoryStore()
	res := ingest(t, store, header+
		"2344,22/04/2019 09:24,VOID\n"+
		"2344,22/04/2019 09:24,01002\n")

	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Failed)
}

func TestIngestSameFileTwiceIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	body := header +
		"2344,22/04/2019 09:24,01002\n" +
		"2233,22/04/2019 12:25,00323\n" +
		"8766,22/04/2019 12:25,03440\n"

	first := ingest(t, store, body)
	assert.Equal(t, 3, first.Success)
	assert.Equal(t, 0, first.Failed)

	second := ingest(t, store, body)
	assert.Equal(t, 0, second.Success)
	assert.Equal(t, 3, second.Failed)
	assert.Equal(t, 3, second.ReasonCounts["duplicate_reading"])
	assert.Len(t, store.rows, 3)
}

func TestIngestOutOfOrderAgainstPersisted(t *testing.T) {
	store := newMemoryStore()
	ingest(t, store, header+"2344,22/04/2019 09:24,01002\n")

	res := ingest(t, store, header+
		"2344,21/04/2019 09:24,01002\n"+
		"2344,23/04/2019 09:24,01003\n")

	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.ReasonCounts["out_of_order_reading"])
}

func TestIngestEarlierRowsWithinOneFileAreAccepted(t *testing.T) {
	store := newMemoryStore()
	res := ingest(t, store, header+
		"2344,23/04/2019 09:24,01003\n"+
		"2344,22/04/2019 09:24,01002\n")

	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 0, res.Failed)
}

func TestIngestConflictDegradesToPerRecordInsert(t *testing.T) {
	store := newMemoryStore()
	snap := store.snapshot(accounts())

	// a concurrent upload lands the same pair after the snapshot was taken
	store.rows[readingdomain.NewPair(2344, time.Date(2019, 4, 22, 9, 24, 0, 0, time.UTC))] = readingdomain.MeterReading{AccountID: 2344}

	res, err := newIngestor(t, store).Ingest(context.Background(), strings.NewReader(header+
		"2344,22/04/2019 09:24,01002\n"+
		"2233,22/04/2019 12:25,00323\n"), snap, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.ReasonCounts["persist_conflict"])
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, int64(2233), res.Accepted[0].AccountID)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, 2, res.Rejections[0].Line)
}

func TestIngestStoreFailureIsReturned(t *testing.T) {
	store := &mockStore{}
	boom := errors.New("connection reset")
	store.On("BulkInsert", mock.Anything, mock.Anything).Return(boom)

	_, err := newIngestor(t, store).Ingest(context.Background(),
		strings.NewReader(header+"2344,22/04/2019 09:24,01002\n"),
		readingdomain.NewSnapshot(accounts(), nil), Options{UploadID: "01HZX"})
	assert.ErrorIs(t, err, boom)
	store.AssertNotCalled(t, "InsertIgnoreConflict", mock.Anything, mock.Anything)
}

func TestIngestDoesNotTouchStoreWithoutAcceptedRows(t *testing.T) {
	store := &mockStore{}

	res, err := newIngestor(t, store).Ingest(context.Background(),
		strings.NewReader(header+"9999,22/04/2019 09:24,01002\n"),
		readingdomain.NewSnapshot(accounts(), nil), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	store.AssertExpectations(t)
}

func TestIngestStampsUploadID(t *testing.T) {
	store := &mockStore{}
	store.On("BulkInsert", mock.Anything, mock.MatchedBy(func(rs []readingdomain.MeterReading) bool {
		return len(rs) == 1 && rs[0].UploadID != nil && *rs[0].UploadID == "01HZX"
	})).Return(nil)

	res, err := newIngestor(t, store).Ingest(context.Background(),
		strings.NewReader(header+"2344,22/04/2019 09:24,01002\n"),
		readingdomain.NewSnapshot(accounts(), nil), Options{UploadID: "01HZX"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	store.AssertExpectations(t)
}
