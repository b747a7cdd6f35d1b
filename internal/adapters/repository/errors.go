package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("document not found")
	ErrConflict     = errors.New("concurrent update conflict")
	ErrSkipWrite    = errors.New("skip write")
	ErrInvalidQuery = errors.New("invalid query")
	ErrInvalidInput = errors.New("invalid document")
)
