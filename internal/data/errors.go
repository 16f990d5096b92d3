package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrItemNotFound is returned when an item does not exist.
	ErrItemNotFound = errors.New("item not found")
	// ErrBatchRunNotFound is returned when a batch run summary does not exist.
	ErrBatchRunNotFound = errors.New("batch run not found")
)
