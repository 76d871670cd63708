package stock

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrMalformedRecord   = errors.New("malformed stock record")
	ErrStoreUnavailable  = errors.New("snapshot store unavailable")
	ErrInvalidPagination = errors.New("invalid pagination parameters")
)

// storeError marks a repository failure as ErrStoreUnavailable while keeping the cause.
type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *storeError) Unwrap() error { return e.err }

func (e *storeError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func wrapStoreError(op string, err error) error {
	if err == nil || errors.Is(err, ErrSnapshotNotFound) {
		return err
	}
	return &storeError{op: op, err: err}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...))
}
