package fetcher

import (
	"errors"
	"fmt"
)

// FetchError reports that the retrieval capability could not produce a tile's bytes
type FetchError struct {
	Sequence int
	Ref      string
	Status   int // 0 when the failure carried no status
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch tile %d (%s): status %d: %v", e.Sequence, e.Ref, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch tile %d (%s): %v", e.Sequence, e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchTimeoutError reports a payload reference that never got populated
type FetchTimeoutError struct {
	Sequence int
	Attempts int
}

func (e *FetchTimeoutError) Error() string {
	return fmt.Sprintf("fetch tile %d: source still empty after %d attempts", e.Sequence, e.Attempts)
}

// DecodeError reports bytes that are not a decodable image. Callers may retry
// the whole reconstruction with a longer settle delay.
type DecodeError struct {
	Sequence int
	Ref      string
	Size     int
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode tile %d (%s, %d bytes): %v", e.Sequence, e.Ref, e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth a fresh reconstruction attempt.
func IsRetryable(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// statusCoder is implemented by retrieval errors that carry a numeric status.
type statusCoder interface {
	StatusCode() int
}
