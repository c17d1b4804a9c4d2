package at

import (
	"fmt"
	"strings"
)

// Direction is the transfer direction of a frame as seen by the capturing host.
type Direction int

const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	if d == Received {
		return "received"
	}
	return "sent"
}

// Override forces the role of every frame regardless of its direction.
type Override int

const (
	Auto Override = iota
	ForceDTE
	ForceDCE
)

func (o Override) String() string {
	switch o {
	case ForceDTE:
		return "dte"
	case ForceDCE:
		return "dce"
	}
	return "auto"
}

// ParseOverride accepts "auto", "dte" or "dce" in any case.
func ParseOverride(s string) (Override, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "dte":
		return ForceDTE, nil
	case "dce":
		return ForceDCE, nil
	}
	return Auto, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Resolver decides which side produced a frame.
type Resolver struct {
	Override Override
}

// Resolve returns the forced role, or DTE for frames sent by the capturing
// host and DCE for received ones.
func (r Resolver) Resolve(d Direction) Role {
	switch r.Override {
	case ForceDTE:
		return DTE
	case ForceDCE:
		return DCE
	}
	if d == Received {
		return DCE
	}
	return DTE
}
