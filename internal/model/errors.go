package model

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrInvalidInput marks a malformed record. Batch operations reject only
	// the offending item.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a reference to an id outside the supplied candidate set.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration marks a missing or contradictory preference record.
	ErrConfiguration = errors.New("configuration error")
)

// ItemError is a per-item failure inside a batch operation.
type ItemError struct {
	ItemID string `json:"item_id"`
	Err    error  `json:"-"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %s: %v", e.ItemID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// ItemErrors collects per-item failures for host-side logging.
type ItemErrors []ItemError

// Add records a failure for the item with the given numeric id.
func (es *ItemErrors) Add(id int64, err error) {
	*es = append(*es, ItemError{ItemID: strconv.FormatInt(id, 10), Err: err})
}

// Err joins the collected failures, or returns nil when there are none.
func (es ItemErrors) Err() error {
	if len(es) == 0 {
		return nil
	}
	errs := make([]error, len(es))
	for i, e := range es {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// LogAttrs flattens the failures into slog-friendly key/value pairs.
func (es ItemErrors) LogAttrs() []any {
	ids := make([]string, len(es))
	for i, e := range es {
		ids[i] = e.ItemID
	}
	return []any{"failed_items", ids, "failed_count", len(es)}
}
