package domain

import "errors"

var (
	ErrNoFileProvided     = errors.New("no_file_provided")
	ErrMalformedRow       = errors.New("malformed_row")
	ErrUnknownAccount     = errors.New("unknown_account")
	ErrInvalidTimestamp   = errors.New("invalid_timestamp")
	ErrInvalidValueFormat = errors.New("invalid_value_format")
	ErrDuplicateReading   = errors.New("duplicate_reading")
	ErrOutOfOrderReading  = errors.New("out_of_order_reading")
	// ErrPersistConflict marks an accepted row that lost the unique index
	// race to a concurrent upload.
	ErrPersistConflict = errors.New("persist_conflict")

	ErrUploadTooLarge  = errors.New("upload_too_large")
	ErrUploadNotFound  = errors.New("upload_not_found")
	ErrInvalidUploadID = errors.New("invalid_upload_id")
)

var rejectionReasons = []error{
	ErrMalformedRow,
	ErrUnknownAccount,
	ErrInvalidTimestamp,
	ErrInvalidValueFormat,
	ErrDuplicateReading,
	ErrOutOfOrderReading,
	ErrPersistConflict,
}

// RejectionReasons lists every reason a row can be counted as failed.
func RejectionReasons() []error {
	out := make([]error, len(rejectionReasons))
	copy(out, rejectionReasons)
	return out
}

// ReasonCode returns the code of the rejection reason err wraps.
func ReasonCode(err error) string {
	for _, reason := range rejectionReasons {
		if errors.Is(err, reason) {
			return reason.Error()
		}
	}
	return "unknown"
}
