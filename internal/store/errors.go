package store

import "errors"

// ErrNotFound is returned when a record does not exist, or when a
// conditional update matched no row.
var ErrNotFound = errors.New("not found")
