package database

import "errors"

var (
	// ErrCodeExists is returned when an attempt is made to create
	// a new mapping with a short code that already exists.
	ErrCodeExists = errors.New("short code exists")
	// ErrMappingNotFound is returned when an attempt is made to retrieve
	// a mapping using a short code that doesn't exist.
	ErrMappingNotFound = errors.New("mapping not found")
)
