// Package ingest turns an uploaded CSV stream into persisted meter readings.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meterreadings/internal/clock"
	obslog "github.com/smallbiznis/meterreadings/internal/observability/logger"
	readingdomain "github.com/smallbiznis/meterreadings/internal/reading/domain"
	"github.com/smallbiznis/meterreadings/internal/reading/validator"
	"github.com/smallbiznis/meterreadings/pkg/db"
	"go.uber.org/zap"
)

const utf8BOM = "\uFEFF"

// Store persists accepted readings.
type Store interface {
	// BulkInsert writes every reading or none.
	BulkInsert(ctx context.Context, readings []readingdomain.MeterReading) error
	// InsertIgnoreConflict reports false when the pair already exists.
	InsertIgnoreConflict(ctx context.Context, reading *readingdomain.MeterReading) (bool, error)
}

// Rejection describes one failed data row. Line is 1-based and counts the
// header and blank lines.
type Rejection struct {
	Line   int
	Reason error
}

type Result struct {
	Success      int
	Failed       int
	Accepted     []readingdomain.MeterReading
	Rejections   []Rejection
	ReasonCounts map[string]int
}

func (r *Result) reject(line int, reason error) {
	r.Failed++
	r.Rejections = append(r.Rejections, Rejection{Line: line, Reason: reason})
	r.ReasonCounts[readingdomain.ReasonCode(reason)]++
}

type Options struct {
	UploadID string
}

type Ingestor struct {
	store Store
	clock clock.Clock
	genID *snowflake.Node
	log   *zap.Logger
}

func New(store Store, clk clock.Clock, genID *snowflake.Node, log *zap.Logger) *Ingestor {
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{store: store, clock: clk, genID: genID, log: log.Named("reading.ingest")}
}

// Ingest validates every data row of r against snap and persists the
// accepted rows. Rejected rows never abort the upload; only a read or
// storage failure does.
func (i *Ingestor) Ingest(ctx context.Context, r io.Reader, snap readingdomain.Snapshot, opts Options) (Result, error) {
	result := Result{ReasonCounts: map[string]int{}}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return result, readingdomain.ErrNoFileProvided
		}
		return result, fmt.Errorf("read upload: %w", err)
	}

	now := i.clock.Now()
	in := validator.Input{
		Accounts: snap.Accounts,
		Latest:   snap.Latest,
		Prior:    snap.Prior,
		InBatch:  readingdomain.NewPairSet(),
	}
	if in.Prior == nil {
		in.Prior = readingdomain.NewPairSet()
	}

	var uploadID *string
	if opts.UploadID != "" {
		uploadID = &opts.UploadID
	}

	var acceptedLines []int
	lineNo := 0
	headerSeen := false
	for {
		raw, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return result, fmt.Errorf("read upload: %w", readErr)
		}
		if raw == "" && readErr != nil {
			break
		}

		lineNo++
		line := strings.TrimRight(raw, "\r\n")
		if lineNo == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}

		switch {
		case strings.TrimSpace(line) == "":
		case !headerSeen:
			headerSeen = true
		default:
			reading, err := validator.Validate(line, in, now)
			if err != nil {
				result.reject(lineNo, err)
				break
			}
			if i.genID != nil {
				reading.ID = i.genID.Generate()
			}
			reading.UploadID = uploadID
			in.InBatch.Add(reading.Key())
			result.Accepted = append(result.Accepted, reading)
			acceptedLines = append(acceptedLines, lineNo)
			result.Success++
		}

		if readErr != nil {
			break
		}
	}

	if len(result.Accepted) == 0 {
		return result, nil
	}
	if err := i.persist(ctx, &result, acceptedLines); err != nil {
		return result, err
	}
	return result, nil
}

func (i *Ingestor) persist(ctx context.Context, result *Result, lines []int) error {
	err := i.store.BulkInsert(ctx, result.Accepted)
	if err == nil {
		return nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return fmt.Errorf("persist readings: %w", err)
	}

	obslog.WithContext(ctx, i.log).Warn("bulk insert hit existing readings, retrying row by row",
		zap.Int("accepted", len(result.Accepted)),
	)

	kept := result.Accepted[:0]
	for idx := range result.Accepted {
		reading := result.Accepted[idx]
		inserted, err := i.store.InsertIgnoreConflict(ctx, &reading)
		if err != nil {
			return fmt.Errorf("persist reading: %w", err)
		}
		if !inserted {
			result.Success--
			result.reject(lines[idx], readingdomain.ErrPersistConflict)
			continue
		}
		kept = append(kept, reading)
	}
	result.Accepted = kept
	return nil
}
