package storage

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrNotifyUnavailable is returned by LISTEN/NOTIFY helpers when the DB was
// opened without a notify DSN.
var ErrNotifyUnavailable = errors.New("storage: notify connection not configured")
