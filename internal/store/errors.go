package store

import "fmt"

// CacheError wraps a failed cache operation. Callers treat it as a miss or a
// best-effort write that did not happen; it is never fatal.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}
