package types

import "errors"

// ULID-related errors
var (
	// ErrInvalidULIDLength is returned when a ULID string or byte slice has incorrect length
	ErrInvalidULIDLength = errors.New("invalid ULID length")

	// ErrInvalidULIDCharacter is returned when a ULID string contains invalid characters
	ErrInvalidULIDCharacter = errors.New("invalid ULID character")
)

// ErrInvalidRange is returned by Filter.Validate when since > until.
var ErrInvalidRange = errors.New("since_timestamp is greater than until_timestamp")
