package core

import "errors"

var (
	// ErrNotFound is the root of every invalid-reference error: a mutator was
	// called with a block, stroke, comment or conflict id that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAnchor is returned when a comment anchor does not match its mode.
	ErrInvalidAnchor = errors.New("invalid comment anchor")

	// ErrInvalidSettings is returned when dev settings are out of range.
	ErrInvalidSettings = errors.New("invalid dev settings")

	// ErrUnknownEvent is returned when decoding an event with an unknown type tag.
	ErrUnknownEvent = errors.New("unknown event type")
)
