package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindHTTPStatus ErrorKind = "http_status"
	KindNetwork    ErrorKind = "network"
	KindMalformed  ErrorKind = "malformed"
)

// FetchError is returned by every Client call that did not produce a usable body.
type FetchError struct {
	Kind ErrorKind
	Code int // HTTP status, set for KindHTTPStatus
	Err  error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch failed: http status %d", e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s)", e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a *FetchError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var ferr *FetchError
	if errors.As(err, &ferr) {
		return ferr.Kind
	}
	return ""
}

// classify maps a transport error onto Timeout or Network.
func classify(err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	return &FetchError{Kind: KindNetwork, Err: err}
}
