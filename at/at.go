package at

import "fmt"

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = "> "
	CtrlZ  = "\x1a"
	Esc    = "\x1b"

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	Connect    = "CONNECT"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// URCs (Unsolicited Result Codes)
	UrcNewMsg         = "+CMTI:"
	UrcMessageReport  = "+CDSI:"
	UrcSignalStrength = "+CSQ:"
	UrcIndicator      = "+CIEV:"
	UrcCall           = "RING"
)

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CSQ: ...)
	TypePrompt                     // SMS input prompt
)

// Role tells which side of the link produced a frame.
type Role int

const (
	// DTE is the controlling terminal (host) issuing commands.
	DTE Role = iota
	// DCE is the controlled device (modem) answering them.
	DCE
)

func (r Role) String() string {
	switch r {
	case DTE:
		return "DTE"
	case DCE:
		return "DCE"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// slot is the CommandState index of the role inside a session: the DTE is
// the initiator, the DCE the responder.
func (r Role) slot() int {
	if r == DCE {
		return 1
	}
	return 0
}

func (r Role) peer() Role {
	if r == DCE {
		return DTE
	}
	return DCE
}

// Type is the classification of one command line.
type Type int

const (
	TypeUnknown Type = iota
	// TypeAction is "AT+CMD=<params>" or the inline form "ATE0".
	TypeAction
	// TypeActionSimple is an argument-less "AT+CMD".
	TypeActionSimple
	// TypeRead is "AT+CMD?".
	TypeRead
	// TypeTest is "AT+CMD=?".
	TypeTest
	// TypeResponse is "+CMD: <params>".
	TypeResponse
	// TypeResponseAck is a header-only response line such as "OK".
	TypeResponseAck
)

var typeNames = [...]string{
	TypeUnknown:      "unknown",
	TypeAction:       "action",
	TypeActionSimple: "action-simple",
	TypeRead:         "read",
	TypeTest:         "test",
	TypeResponse:     "response",
	TypeResponseAck:  "response-ack",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Marker is the suffix that selects the type on the wire.
func (t Type) Marker() string {
	switch t {
	case TypeAction:
		return "="
	case TypeRead:
		return "?"
	case TypeTest:
		return "=?"
	case TypeResponse:
		return ":"
	case TypeResponseAck:
		return "\\r\\n"
	case TypeActionSimple:
		return "\\r"
	}
	return ""
}

// MarshalText lets records carry the type as a string in JSON.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// MarshalText lets records carry the role as a string in JSON.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "DTE":
		*r = DTE
	case "DCE":
		*r = DCE
	default:
		return fmt.Errorf("role %q: %w", text, ErrUnknownName)
	}
	return nil
}

func (t *Type) UnmarshalText(text []byte) error {
	for i, name := range typeNames {
		if name == string(text) {
			*t = Type(i)
			return nil
		}
	}
	return fmt.Errorf("type %q: %w", text, ErrUnknownName)
}

// hasParams reports whether a parameter list follows the header.
func (t Type) hasParams() bool {
	return t == TypeAction || t == TypeResponse
}

// TypeSet is a bit set of command types.
type TypeSet uint16

// Types builds a TypeSet.
func Types(types ...Type) TypeSet {
	var s TypeSet
	for _, t := range types {
		s |= 1 << uint(t)
	}
	return s
}

// Has reports whether t is in the set.
func (s TypeSet) Has(t Type) bool {
	return s&(1<<uint(t)) != 0
}
