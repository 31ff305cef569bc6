package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
	accountrepo "github.com/smallbiznis/meterreadings/internal/account/repository"
	accountservice "github.com/smallbiznis/meterreadings/internal/account/service"
	"github.com/smallbiznis/meterreadings/internal/clock"
	"github.com/smallbiznis/meterreadings/internal/config"
	"github.com/smallbiznis/meterreadings/internal/promexport"
	readingdomain "github.com/smallbiznis/meterreadings/internal/reading/domain"
	"github.com/smallbiznis/meterreadings/internal/reading/repository"
	"github.com/smallbiznis/meterreadings/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sampleUpload = `AccountId,MeterReadingDateTime,MeterReadValue,
2344,22/04/2019 09:24,01002,
2233,22/04/2019 12:25,00323,
8766,22/04/2019 12:25,03440,
2344,22/04/2019 12:25,01002,
2345,22/04/2019 12:25,45522,
2346,22/04/2019 12:25,999999,
2347,22/04/2019 12:25,00054,
2344,22/04/2019 09:24,01002,
4534,22/04/2019 12:25,
`

type fixture struct {
	db    *gorm.DB
	svc   readingdomain.Service
	clock *clock.FakeClock
	prom  *promexport.Collector
}

func setup(t *testing.T, uploadCfg config.UploadConfig) fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&readingdomain.MeterReading{},
		&readingdomain.UploadBatch{},
	))

	accounts := accountrepo.Provide()
	_, err = accounts.InsertIgnoreExisting(context.Background(), db, []accountdomain.Account{
		{ID: 2344}, {ID: 2233}, {ID: 8766}, {ID: 2345}, {ID: 2346}, {ID: 2347}, {ID: 4534},
	})
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	prom := promexport.New(promexport.NewRegistry())
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fc,
		Repo:       repository.Provide(),
		AccountSvc: accountservice.New(accountservice.Params{DB: db, Log: zap.NewNop(), Repo: accounts}),
		UploadCfg:  config.NewStaticUploadConfigHolder(uploadCfg),
		Prom:       prom,
	})
	return fixture{db: db, svc: svc, clock: fc, prom: prom}
}

func upload(t *testing.T, svc readingdomain.Service, body string) *readingdomain.UploadResult {
	t.Helper()
	res, err := svc.Upload(context.Background(), readingdomain.UploadRequest{
		FileName: "Meter_Reading.csv",
		Size:     int64(len(body)),
		Content:  strings.NewReader(body),
	})
	require.NoError(t, err)
	return res
}

func countReadings(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&readingdomain.MeterReading{}).Count(&n).Error)
	return n
}

func TestUploadPersistsAcceptedRows(t *testing.T) {
	f := setup(t, config.DefaultUploadConfig())

	res := upload(t, f.svc, sampleUpload)
	assert.Equal(t, 6, res.Success)
	assert.Equal(t, 3, res.Failed)
	assert.NotEmpty(t, res.UploadID)
	assert.Equal(t, int64(6), countReadings(t, f.db))

	batch, err := f.svc.GetUpload(context.Background(), res.UploadID)
	require.NoError(t, err)
	assert.Equal(t, "Meter_Reading.csv", batch.FileName)
	assert.Equal(t, int64(len(sampleUpload)), batch.SizeBytes)
	assert.Equal(t, 6, batch.Success)
	assert.Equal(t, 3, batch.Failed)
	assert.Equal(t, json.Number("1"), batch.ReasonCounts["duplicate_reading"])
	assert.Equal(t, json.Number("2"), batch.ReasonCounts["invalid_value_format"])

	assert.Equal(t, 6.0, counterValue(t, f.prom, "meterreadings_rows_total", map[string]string{"outcome": "accepted", "reason": ""}))
	assert.Equal(t, 2.0, counterValue(t, f.prom, "meterreadings_rows_total", map[string]string{"outcome": "rejected", "reason": "invalid_value_format"}))
}

func counterValue(t *testing.T, c *promexport.Collector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	next:
		for _, m := range family.GetMetric() {
			for _, l := range m.GetLabel() {
				if labels[l.GetName()] != l.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestUploadSameFileTwice(t *testing.T) {
	f := setup(t, config.DefaultUploadConfig())

	first := upload(t, f.svc, sampleUpload)
	assert.Equal(t, 6, first.Success)

	f.clock.Advance(time.Minute)
	second := upload(t, f.svc, sampleUpload)
	assert.Equal(t, 0, second.Success)
	assert.Equal(t, 9, second.Failed)
	assert.NotEqual(t, first.UploadID, second.UploadID)
	assert.Equal(t, int64(6), countReadings(t, f.db))
}

func TestUploadOutOfOrderAcrossUploads(t *testing.T) {
	f := setup(t, config.DefaultUploadConfig())

	upload(t, f.svc, "AccountId,MeterReadingDateTime,MeterReadValue\n2344,22/04/2019 09:24,01002\n")
	res := upload(t, f.svc, "AccountId,MeterReadingDateTime,MeterReadValue\n2344,21/04/2019 09:24,01001\n2344,23/04/2019 09:24,01003\n")

	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Failed)

	batch, err := f.svc.GetUpload(context.Background(), res.UploadID)
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), batch.ReasonCounts["out_of_order_reading"])
}

func TestUploadSmallInsertBatches(t *testing.T) {
	cfg := config.DefaultUploadConfig()
	cfg.InsertBatchSize = 2
	f := setup(t, cfg)

	res := upload(t, f.svc, sampleUpload)
	assert.Equal(t, 6, res.Success)
	assert.Equal(t, int64(6), countReadings(t, f.db))
}

func TestUploadWithoutFile(t *testing.T) {
	f := setup(t, config.DefaultUploadConfig())
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, readingdomain.UploadRequest{})
	assert.ErrorIs(t, err, readingdomain.ErrNoFileProvided)

	_, err = f.svc.Upload(ctx, readingdomain.UploadRequest{Size: 0, Content: strings.NewReader("")})
	assert.ErrorIs(t, err, readingdomain.ErrNoFileProvided)

	_, err = f.svc.Upload(ctx, readingdomain.UploadRequest{Size: -1, Content: strings.NewReader("")})
	assert.ErrorIs(t, err, readingdomain.ErrNoFileProvided)
}

func TestUploadHeaderOnly(t *testing.T) {
	f := setup(t, config.DefaultUploadConfig())

	res := upload(t, f.svc, "AccountId,MeterReadingDateTime,MeterReadValue,\n")
	assert.Equal(t, 0, res.Success)
	assert.Equal(t, 0, res.Failed)
}

func TestUploadTooLarge(t *testing.T) {
	cfg := config.DefaultUploadConfig()
	cfg.MaxUploadBytes = 10
	f := setup(t, cfg)

	_, err := f.svc.Upload(context.Background(), readingdomain.UploadRequest{
		Size:    int64(len(sampleUpload)),
		Content: strings.NewReader(sampleUpload),
	})
	assert.ErrorIs(t, err, readingdomain.ErrUploadTooLarge)
	assert.Equal(t, int64(0), countReadings(t, f.db))
}

func TestUploadTooLargeWithUnknownSize(t *testing.T) {
	cfg := config.DefaultUploadConfig()
	cfg.MaxUploadBytes = 10
	f := setup(t, cfg)

	_, err := f.svc.Upload(context.Background(), readingdomain.UploadRequest{
		Size:    -1,
		Content: strings.NewReader(sampleUpload),
	})
	assert.ErrorIs(t, err, readingdomain.ErrUploadTooLarge)
	assert.Equal(t, int64(0), countReadings(t, f.db))
}

func TestUploadChecksOnlyReferencedAccounts(t *testing.T) {
	f := setup(t, config.DefaultUploadConfig())

	upload(t, f.svc, "AccountId,MeterReadingDateTime,MeterReadValue\n2233,25/04/2019 09:24,00500\n2344,22/04/2019 09:24,01002\n")

	// 2233 has a later reading on file but is not part of this upload
	res := upload(t, f.svc, "AccountId,MeterReadingDateTime,MeterReadValue\n2344,23/04/2019 09:24,01003\n2344,22/04/2019 09:24,01002\n2344,21/04/2019 09:24,01001\n")
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 2, res.Failed)

	batch, err := f.svc.GetUpload(context.Background(), res.UploadID)
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), batch.ReasonCounts["duplicate_reading"])
	assert.Equal(t, json.Number("1"), batch.ReasonCounts["out_of_order_reading"])
}

func TestUploadStampsRecordedAt(t *testing.T) {
	f := setup(t, config.DefaultUploadConfig())

	upload(t, f.svc, "AccountId,MeterReadingDateTime,MeterReadValue\n2344,22/04/2019 09:24,01002\n")

	var reading readingdomain.MeterReading
	require.NoError(t, f.db.First(&reading).Error)
	assert.True(t, reading.RecordedAt.Equal(f.clock.Now()))
	assert.True(t, reading.ReadingAt.Equal(time.Date(2019, 4, 22, 9, 24, 0, 0, time.UTC)))
	require.NotNil(t, reading.UploadID)
}

func TestListByAccount(t *testing.T) {
	f := setup(t, config.DefaultUploadConfig())
	ctx := context.Background()

	upload(t, f.svc, "AccountId,MeterReadingDateTime,MeterReadValue\n"+
		"2344,22/04/2019 09:24,01002\n"+
		"2344,23/04/2019 09:24,01003\n"+
		"2344,24/04/2019 09:24,01004\n"+
		"2233,22/04/2019 09:24,00001\n")

	page, err := f.svc.ListByAccount(ctx, readingdomain.ListRequest{
		AccountID:  "2344",
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "01002", page.Data[0].Value)
	assert.True(t, page.PageInfo.HasMore)
	require.NotEmpty(t, page.PageInfo.NextPageToken)

	next, err := f.svc.ListByAccount(ctx, readingdomain.ListRequest{
		AccountID:  "2344",
		Pagination: pagination.Pagination{PageSize: 2, PageToken: page.PageInfo.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, next.Data, 1)
	assert.Equal(t, "01004", next.Data[0].Value)
	assert.False(t, next.PageInfo.HasMore)

	_, err = f.svc.ListByAccount(ctx, readingdomain.ListRequest{AccountID: "9999"})
	assert.ErrorIs(t, err, accountdomain.ErrNotFound)

	_, err = f.svc.ListByAccount(ctx, readingdomain.ListRequest{AccountID: "x"})
	assert.ErrorIs(t, err, accountdomain.ErrInvalidID)

	_, err = f.svc.ListByAccount(ctx, readingdomain.ListRequest{
		AccountID:  "2344",
		Pagination: pagination.Pagination{PageToken: "%%%"},
	})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}

func TestGetUploadErrors(t *testing.T) {
	f := setup(t, config.DefaultUploadConfig())
	ctx := context.Background()

	_, err := f.svc.GetUpload(ctx, "not-a-ulid")
	assert.ErrorIs(t, err, readingdomain.ErrInvalidUploadID)

	_, err = f.svc.GetUpload(ctx, "01HZX3V6W6V2Q9J4N8K5M7P1QR")
	assert.ErrorIs(t, err, readingdomain.ErrUploadNotFound)
}
