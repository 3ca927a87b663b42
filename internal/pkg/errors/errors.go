package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalid              = errors.New("invalid")
	ErrUnavailable          = errors.New("ai provider unavailable")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrUnsupportedFile      = errors.New("unsupported file type")
)

// StorageError reports a vector store write that did not fully succeed.
// Persisted holds the number of chunks that were written before the failure.
type StorageError struct {
	Persisted int
	Total     int
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failed after %d/%d chunks: %v", e.Persisted, e.Total, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func AsStorageError(err error) (*StorageError, bool) {
	var se *StorageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
