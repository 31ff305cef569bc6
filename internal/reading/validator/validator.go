// Package validator decides whether one CSV row becomes a meter reading.
package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
	readingdomain "github.com/smallbiznis/meterreadings/internal/reading/domain"
)

const (
	fieldSeparator  = ","
	timestampLayout = "02/01/2006 15:04"
)

var (
	// time.Parse accepts single-digit hours for "15"; the shape is checked first.
	timestampPattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4} \d{2}:\d{2}$`)
	valuePattern     = regexp.MustCompile(`^[0-9]{5}$`)
)

// Input is the state a row is checked against.
type Input struct {
	Accounts accountdomain.IDSet
	Latest   readingdomain.LatestLookup
	// Prior holds pairs persisted before the upload started.
	Prior readingdomain.PairSet
	// InBatch holds pairs accepted earlier in the same upload.
	InBatch readingdomain.PairSet
}

// Validate runs the row checks in order and returns the first failure.
// The returned reading carries no ID; RecordedAt is set to now.
func Validate(line string, in Input, now time.Time) (readingdomain.MeterReading, error) {
	fields := strings.Split(line, fieldSeparator)
	if len(fields) < 3 {
		return readingdomain.MeterReading{}, fmt.Errorf("%w: expected 3 fields, got %d", readingdomain.ErrMalformedRow, len(fields))
	}

	accountID, err := ParseAccountID(fields[0])
	if err != nil || !in.Accounts.Has(accountID) {
		return readingdomain.MeterReading{}, readingdomain.ErrUnknownAccount
	}

	readingAt, err := parseTimestamp(fields[1])
	if err != nil {
		return readingdomain.MeterReading{}, readingdomain.ErrInvalidTimestamp
	}

	raw := strings.TrimSpace(fields[2])
	if !valuePattern.MatchString(raw) {
		return readingdomain.MeterReading{}, readingdomain.ErrInvalidValueFormat
	}
	// five ASCII digits always parse
	value, _ := strconv.Atoi(raw)

	pair := readingdomain.NewPair(accountID, readingAt)
	if in.Prior.Has(pair) || in.InBatch.Has(pair) {
		return readingdomain.MeterReading{}, readingdomain.ErrDuplicateReading
	}

	if in.Latest != nil {
		if latest, ok := in.Latest.LatestReadingAt(accountID); ok && readingAt.Before(latest) {
			return readingdomain.MeterReading{}, readingdomain.ErrOutOfOrderReading
		}
	}

	return readingdomain.MeterReading{
		AccountID:  accountID,
		ReadingAt:  readingAt,
		Value:      value,
		RecordedAt: now,
	}, nil
}

// ParseAccountID accepts what a lenient 32-bit integer parse accepts:
// surrounding whitespace and an optional sign.
func ParseAccountID(field string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 32)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func parseTimestamp(field string) (time.Time, error) {
	s := strings.TrimSpace(field)
	if !timestampPattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("timestamp %q does not match %s", s, timestampLayout)
	}
	return time.ParseInLocation(timestampLayout, s, time.UTC)
}
