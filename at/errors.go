package at

import "errors"

var (
	// ErrInvalidRole is returned when a role override is neither auto, dte
	// nor dce.
	ErrInvalidRole = errors.New("invalid role override")

	// ErrEmptyHandoffName is returned when a handoff analyzer is registered
	// without a name.
	ErrEmptyHandoffName = errors.New("handoff analyzer name is empty")

	// ErrNilHandoff is returned when a handoff analyzer is registered with a
	// nil function.
	ErrNilHandoff = errors.New("handoff analyzer is nil")

	// ErrUnknownName is returned when decoding a role, type or advisory
	// kind from a name that does not exist.
	ErrUnknownName = errors.New("unknown name")
)
