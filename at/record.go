package at

import "fmt"

// Frame is one captured unit of AT text handed to the analyzer.
type Frame struct {
	// Number is the stable ordinal of the frame inside its capture.
	Number    uint64
	Key       Key
	Direction Direction
	Data      []byte
}

// Kind classifies advisories.
type Kind int

const (
	KindUnknownCommand Kind = iota + 1
	KindRoleMismatch
	KindUnknownParameter
	KindOutOfRange
	KindMalformedPayload
)

var kindNames = map[Kind]string{
	KindUnknownCommand:   "unknown-command",
	KindRoleMismatch:     "role-mismatch",
	KindUnknownParameter: "unknown-parameter",
	KindOutOfRange:       "out-of-range",
	KindMalformedPayload: "malformed-payload",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("kind %q: %w", text, ErrUnknownName)
}

// Advisory is a non-fatal diagnostic raised while analyzing a frame.
type Advisory struct {
	Kind    Kind   `json:"kind"`
	Offset  int    `json:"offset"`
	Command string `json:"command,omitempty"`
	Message string `json:"message"`
}

func (a Advisory) String() string {
	return fmt.Sprintf("%s at %d: %s", a.Kind, a.Offset, a.Message)
}

// Span is a run of frame bytes the analyzer did not parse.
type Span struct {
	Offset int    `json:"offset"`
	Data   string `json:"data"`
}

// Field is one parameter of a command.
type Field struct {
	Index      int    `json:"index"`
	Offset     int    `json:"offset"`
	Recognized bool   `json:"recognized"`
	Value      string `json:"value"`
	Label      string `json:"label,omitempty"`
}

// Command is one command or response line found in a frame.
type Command struct {
	Name     string  `json:"name"`
	LongName string  `json:"long_name,omitempty"`
	Known    bool    `json:"known"`
	Type     Type    `json:"type"`
	Offset   int     `json:"offset"`
	Fields   []Field `json:"fields,omitempty"`
}

// Part is a continuation line consumed on behalf of a previous command.
type Part struct {
	Command string `json:"command"`
	Index   int    `json:"index"`
	Offset  int    `json:"offset"`
	Data    string `json:"data"`
	Label   string `json:"label,omitempty"`
}

// Handoff is a payload passed to a named external analyzer.
type Handoff struct {
	Analyzer string `json:"analyzer"`
	Role     Role   `json:"role"`
	Payload  []byte `json:"payload"`
	Summary  string `json:"summary,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Record is the analysis result of one frame.
type Record struct {
	Frame      uint64     `json:"frame"`
	Key        Key        `json:"session"`
	Role       Role       `json:"role"`
	Revisit    bool       `json:"revisit,omitempty"`
	Noise      []Span     `json:"noise,omitempty"`
	Commands   []Command  `json:"commands,omitempty"`
	Parts      []Part     `json:"parts,omitempty"`
	Handoffs   []Handoff  `json:"handoffs,omitempty"`
	Advisories []Advisory `json:"advisories,omitempty"`
}

// Count returns the number of advisories of the given kind.
func (r *Record) Count(kind Kind) int {
	n := 0
	for _, a := range r.Advisories {
		if a.Kind == kind {
			n++
		}
	}
	return n
}
