package chessapi

import (
	"errors"
	"fmt"
)

// ErrUserNotFound is wrapped by the NetworkError returned for a 404 on the archive listing.
var ErrUserNotFound = errors.New("user not found")

// DataSourceError reports a response whose shape is not the documented one.
type DataSourceError struct {
	URL    string
	Reason string
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("invalid data from %s: %s", e.URL, e.Reason)
}

// NetworkError reports a failed request: transport failure, or a non-200 status.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s: http %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
