package at

// ClassifyType maps the bytes following a command name to a command type.
// It returns the type and how many suffix bytes it consumed.
//
// Two-byte suffixes are checked first: "=?" is a test, and for the DCE a
// CRLF right after the name is a header-only response. Then one byte
// decides: '=' action, '\r' simple action (response acknowledgement on the
// DCE), ':' response, '?' read. A ';' means a chained command follows the
// argument-less one and is left for the caller. With nothing left on the
// line the command is a simple action. Anything else is the inline
// parameter form of basic commands ("ATE0", "ATD123;", "CONNECT 9600").
func ClassifyType(role Role, rest []byte) (Type, int) {
	if len(rest) >= 2 {
		if rest[0] == '=' && rest[1] == '?' {
			return TypeTest, 2
		}
		if role == DCE && rest[0] == '\r' && rest[1] == '\n' {
			return TypeResponseAck, 2
		}
	}
	if len(rest) == 0 {
		return TypeActionSimple, 0
	}

	switch rest[0] {
	case '=':
		return TypeAction, 1
	case '\r', '\n':
		if role == DCE {
			return TypeResponseAck, 1
		}
		return TypeActionSimple, 1
	case ':':
		return TypeResponse, 1
	case '?':
		return TypeRead, 1
	case ';':
		return TypeActionSimple, 0
	}

	if role == DCE {
		return TypeResponse, 0
	}
	return TypeAction, 0
}
