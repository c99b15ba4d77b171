package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned when the submitted URL is empty or not an http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidAlias is matched by every *InvalidAliasError.
	ErrInvalidAlias = errors.New("invalid alias")
	// ErrAliasTaken is returned when a custom alias belongs to a live mapping.
	ErrAliasTaken = errors.New("alias already taken")
	// ErrRateLimited is returned when the client created too many mappings recently.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrGenerationExhausted is returned when every generated candidate collided with an existing code.
	ErrGenerationExhausted = errors.New("maximum attempts exceeded for generating short code")
	// ErrNotFound is returned when no mapping exists for a short code.
	ErrNotFound = errors.New("short code not found")
	// ErrGone is returned when the mapping of a short code is expired or inactive.
	ErrGone = errors.New("short code expired or inactive")
	// ErrStoreFailure wraps underlying storage and transaction errors.
	ErrStoreFailure = errors.New("store failure")
)

// InvalidAliasError describes why a custom alias was rejected.
type InvalidAliasError struct {
	Reason string
}

func (e *InvalidAliasError) Error() string {
	return "invalid alias: " + e.Reason
}

func (e *InvalidAliasError) Is(target error) bool {
	return target == ErrInvalidAlias
}

var expectedErrs = []error{
	ErrInvalidURL,
	ErrInvalidAlias,
	ErrAliasTaken,
	ErrRateLimited,
	ErrGenerationExhausted,
	ErrNotFound,
	ErrGone,
	ErrStoreFailure,
}

// classify leaves domain outcomes untouched and marks everything else as a store failure.
func classify(err error) error {
	for _, target := range expectedErrs {
		if errors.Is(err, target) {
			return err
		}
	}

	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}
