package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when an insert hits a duplicate key.
var ErrAlreadyExists = errors.New("already exists")
