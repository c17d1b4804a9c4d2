package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing AT command modem output. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings and also
// recognizes the SMS input prompt ("> ").
//
// Live sniffers use it to cut a byte stream into frames. The returned token
// keeps its trailing CRLF so the analyzer sees the same bytes a captured
// frame would carry.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// 1. Match SMS Prompt
	if bytes.HasPrefix(data, []byte(Prompt)) {
		return len(Prompt), data[0:len(Prompt)], nil
	}

	// 2. Match CRLF, or the bare CR ending a DTE command line, or the
	// Ctrl-Z ending a PDU body.
	if i := bytes.IndexAny(data, "\r"+CtrlZ); i >= 0 {
		switch {
		case data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n':
			return i + len(CRLF), data[0 : i+len(CRLF)], nil
		case data[i] == '\r' && i+1 == len(data) && !atEOF:
			// The LF may still be in flight.
			return 0, nil, nil
		default:
			return i + 1, data[0 : i+1], nil
		}
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of a complete modem output line.
func Classify(line string) ResponseType {
	line = strings.TrimRight(line, CRLF)
	if line == Prompt || line == strings.TrimSpace(Prompt) {
		return TypePrompt
	}

	// Direct matches for final results
	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return TypeFinal
	}

	// Prefix matches
	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case strings.HasPrefix(line, UrcNewMsg), strings.HasPrefix(line, UrcMessageReport),
		strings.HasPrefix(line, UrcIndicator), line == UrcCall:
		return TypeURC
	default:
		return TypeData
	}
}

// Token is one delimited parameter field of a command.
type Token struct {
	// Raw refers to the original frame bytes of the field.
	Raw []byte
	// Index is the zero-based field position inside the command.
	Index int
	// Offset is the position of the field inside the frame.
	Offset int
}

// Len is the field length in bytes.
func (t Token) Len() int { return len(t.Raw) }

func (t Token) String() string { return string(t.Raw) }

// nameStop reports whether c ends a command name.
func nameStop(c byte) bool {
	switch c {
	case '\r', '=', ';', '?', ':':
		return true
	}
	return false
}

// scanName returns the end of the candidate command name starting at pos.
// upperASCII upper-cases ASCII letters only. Other bytes, invalid UTF-8
// included, are copied as is so offsets into the copy match the original.
func upperASCII(data []byte) []byte {
	out := make([]byte, len(data))
	for i, c := range data {
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

func scanName(data []byte, pos int) int {
	for pos < len(data) && !nameStop(data[pos]) {
		pos++
	}
	return pos
}

func skipBlank(data []byte, pos int) int {
	for pos < len(data) && (data[pos] == ' ' || data[pos] == '\t') {
		pos++
	}
	return pos
}

func skipLineSpace(data []byte, pos int) int {
	for pos < len(data) {
		switch data[pos] {
		case ' ', '\t', '\r', '\n':
			pos++
		default:
			return pos
		}
	}
	return pos
}

// scanField returns the end of the parameter field starting at pos.
//
// An unescaped double quote toggles quoting; quoted bytes are taken
// literally. Outside quotes a signed nesting counter follows parentheses,
// and only a comma or semicolon at depth zero ends the field. A carriage
// return outside quotes always ends it.
func scanField(data []byte, pos int) int {
	quoted := false
	depth := 0
	for i := pos; i < len(data); i++ {
		c := data[i]
		if c == '"' && (i == pos || data[i-1] != '\\') {
			quoted = !quoted
			continue
		}
		if quoted {
			continue
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ',', ';':
			if depth == 0 {
				return i
			}
		case '\r':
			return i
		}
	}
	return len(data)
}

// SplitParams splits a parameter list such as `1,"a,b",(0-3),4` into its
// fields. Scanning stops at a carriage return or at a semicolon outside
// quotes and parentheses.
func SplitParams(params []byte) []Token {
	var tokens []Token
	pos := 0
	for index := 0; ; index++ {
		pos = skipBlank(params, pos)
		if pos >= len(params) || params[pos] == '\r' {
			break
		}
		end := scanField(params, pos)
		tokens = append(tokens, Token{Raw: params[pos:end], Index: index, Offset: pos})
		if end >= len(params) || params[end] != ',' {
			break
		}
		pos = end + 1
	}
	return tokens
}
