package model

import "errors"

var (
	// ErrInvalidQuery marks a malformed search request, e.g. a query vector of the wrong dimension.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidRecord marks a record that can never be stored, so retrying is pointless.
	ErrInvalidRecord = errors.New("invalid record")
)
