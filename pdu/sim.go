package pdu

import "fmt"

var instructions = map[byte]string{
	0x04: "INVALIDATE",
	0x10: "TERMINAL PROFILE",
	0x12: "FETCH",
	0x14: "TERMINAL RESPONSE",
	0x20: "VERIFY CHV",
	0x24: "CHANGE CHV",
	0x26: "DISABLE CHV",
	0x28: "ENABLE CHV",
	0x2c: "UNBLOCK CHV",
	0x44: "REHABILITATE",
	0x88: "RUN GSM ALGORITHM",
	0xa2: "SEEK",
	0xa4: "SELECT",
	0xb0: "READ BINARY",
	0xb2: "READ RECORD",
	0xc0: "GET RESPONSE",
	0xc2: "ENVELOPE",
	0xd6: "UPDATE BINARY",
	0xdc: "UPDATE RECORD",
	0xf2: "STATUS",
}

// APDU is a command sent to the SIM.
type APDU struct {
	CLA, INS, P1, P2 byte
	Data             []byte
	// Le is the expected response length, valid when HasLe is set.
	Le    int
	HasLe bool
}

// Instruction names INS.
func (a *APDU) Instruction() string {
	if name, ok := instructions[a.INS]; ok {
		return name
	}
	return fmt.Sprintf("INS 0x%02x", a.INS)
}

func (a *APDU) String() string {
	s := fmt.Sprintf("%s cla 0x%02x p1 0x%02x p2 0x%02x", a.Instruction(), a.CLA, a.P1, a.P2)
	if len(a.Data) > 0 {
		s += fmt.Sprintf(" data %x", a.Data)
	}
	if a.HasLe {
		s += fmt.Sprintf(" le %d", a.Le)
	}
	return s
}

// DecodeCommand decodes the four command cases of ISO 7816-4.
func DecodeCommand(b []byte) (*APDU, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: APDU header of %d octets", ErrShort, len(b))
	}
	a := &APDU{CLA: b[0], INS: b[1], P1: b[2], P2: b[3]}
	body := b[4:]
	switch {
	case len(body) == 0:
	case len(body) == 1:
		a.Le, a.HasLe = int(body[0]), true
	default:
		lc := int(body[0])
		switch len(body) {
		case 1 + lc:
			a.Data = body[1:]
		case 2 + lc:
			a.Data = body[1 : 1+lc]
			a.Le, a.HasLe = int(body[1+lc]), true
		default:
			return nil, fmt.Errorf("%w: lc %d with %d octets of body", ErrLength, lc, len(body)-1)
		}
	}
	return a, nil
}

// Status is a SIM response: optional data and the status word.
type Status struct {
	Data     []byte
	SW1, SW2 byte
}

// Meaning explains the status word.
func (s *Status) Meaning() string {
	switch s.SW1 {
	case 0x90:
		if s.SW2 == 0x00 {
			return "normal ending"
		}
	case 0x91:
		return fmt.Sprintf("normal ending, proactive command of %d octets pending", s.SW2)
	case 0x9f, 0x61:
		return fmt.Sprintf("%d octets of response data available", s.SW2)
	case 0x6c:
		return fmt.Sprintf("wrong length, exact length is %d", s.SW2)
	case 0x92:
		return "memory management"
	case 0x94:
		return "referencing management"
	case 0x98:
		return "security management"
	case 0x67:
		return "incorrect parameter P3"
	case 0x6b:
		return "incorrect parameter P1 or P2"
	case 0x6d:
		return "unknown instruction code"
	case 0x6e:
		return "wrong instruction class"
	case 0x6f:
		return "technical problem"
	}
	return "unknown status"
}

func (s *Status) String() string {
	out := fmt.Sprintf("SW %02X%02X (%s)", s.SW1, s.SW2, s.Meaning())
	if len(s.Data) > 0 {
		out += fmt.Sprintf(" data %x", s.Data)
	}
	return out
}

// DecodeStatus splits a SIM response into data and status word.
func DecodeStatus(b []byte) (*Status, error) {
	if len(b) == 0 {
		return nil, ErrEmpty
	}
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: status word", ErrShort)
	}
	n := len(b) - 2
	return &Status{Data: b[:n], SW1: b[n], SW2: b[n+1]}, nil
}
