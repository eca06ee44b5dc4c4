package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited")
	ErrContextDone = errors.New("context cancelled")
)

// FetchError marks a failed quote fetch: network error, timeout, non-2xx
// status, or a whole-payload decode failure. The poll loop retries fetch
// errors with exponential backoff; they are never fatal.
type FetchError struct {
	Pair Pair
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Pair, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedResponseError marks a single exchange entry that could not be
// decoded. The fetch continues with the remaining exchanges; the affected
// exchange is dropped from the snapshot.
type MalformedResponseError struct {
	Exchange string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed quote from %s: %v", e.Exchange, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
