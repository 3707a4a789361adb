package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedPoint is returned when a "lon,lat" value cannot be parsed.
	ErrMalformedPoint = errors.New("malformed point")

	// ErrInvalidFeed wraps every problem found while validating an import feed.
	ErrInvalidFeed = errors.New("invalid feed")

	// ErrInvalidBounds is returned for boxes whose corners are out of range or
	// whose min corner lies above the max corner.
	ErrInvalidBounds = errors.New("invalid bounds")
)
