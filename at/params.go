package at

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// check validates one field value and reports whether it was recognized.
type check func(c *Call, tok Token) bool

// param is the label and check of one positional field.
type param struct {
	label string
	check check
}

// fields handles positional parameters: field i is described by ps[i],
// fields past the end are not recognized.
func fields(ps ...param) ParamFunc {
	return func(c *Call, tok Token) bool {
		if tok.Index >= len(ps) {
			return false
		}
		p := ps[tok.Index]
		c.Label(p.label)
		if p.check == nil {
			return true
		}
		return p.check(c, tok)
	}
}

// byType dispatches to the handler of the command type: action parameters
// and response parameters of one command rarely share a layout.
func byType(action, response ParamFunc) ParamFunc {
	return func(c *Call, tok Token) bool {
		var fn ParamFunc
		switch c.Type {
		case TypeAction:
			fn = action
		case TypeResponse:
			fn = response
		}
		if fn == nil {
			return false
		}
		return fn(c, tok)
	}
}

func value(tok Token) string {
	return strings.TrimSpace(string(tok.Raw))
}

func empty(tok Token) bool {
	return len(bytes.TrimSpace(tok.Raw)) == 0
}

func integer(tok Token) (int, bool) {
	v, err := strconv.Atoi(value(tok))
	if err != nil {
		return 0, false
	}
	return v, true
}

func quoted(tok Token) bool {
	v := value(tok)
	return len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"'
}

func unquote(tok Token) string {
	v := value(tok)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

// number accepts an integer in [lo, hi] or one of the extra values. An
// omitted value is fine; a value outside the range is kept but advised.
func number(lo, hi int, extra ...int) check {
	return func(c *Call, tok Token) bool {
		if empty(tok) {
			return true
		}
		v, ok := integer(tok)
		if !ok {
			return false
		}
		if (v < lo || v > hi) && !slices.Contains(extra, v) {
			c.Advise(KindOutOfRange, "%s %d out of range (%s)", fieldName(c), v, rangeText(lo, hi, extra))
		}
		return true
	}
}

func rangeText(lo, hi int, extra []int) string {
	s := fmt.Sprintf("%d-%d", lo, hi)
	for _, e := range extra {
		s += fmt.Sprintf(" or %d", e)
	}
	return s
}

func fieldName(c *Call) string {
	if c.field != nil && c.field.Label != "" {
		return c.field.Label
	}
	return fmt.Sprintf("parameter %d", c.tok.Index)
}

// text accepts any value, quoted or not.
func text(c *Call, tok Token) bool { return true }

// str accepts a quoted string or an omitted value.
func str(c *Call, tok Token) bool {
	return empty(tok) || quoted(tok)
}

// oneOf accepts the listed values, quoted or not, ignoring case.
func oneOf(values ...string) check {
	return func(c *Call, tok Token) bool {
		v := strings.ToUpper(unquote(tok))
		return slices.Contains(values, v)
	}
}

// oneOfNumbers accepts the listed integers only.
func oneOfNumbers(values ...int) check {
	return func(c *Call, tok Token) bool {
		v, ok := integer(tok)
		if !ok {
			return false
		}
		if !slices.Contains(values, v) {
			c.Advise(KindOutOfRange, "%s %d is not one of %v", fieldName(c), v, values)
		}
		return true
	}
}

// hexString accepts a quoted or bare string of hex digit pairs.
func hexString(c *Call, tok Token) bool {
	if empty(tok) {
		return true
	}
	_, ok := decodeHex(c, unquote(tok))
	return ok
}

func decodeHex(c *Call, s string) ([]byte, bool) {
	if len(s)%2 != 0 {
		c.Advise(KindMalformedPayload, "malformed length: odd number of hex digits (%d)", len(s))
		return nil, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		c.Advise(KindMalformedPayload, "invalid hex string: %v", err)
		return nil, false
	}
	return b, true
}

// peerIs reports whether the other direction's last command is name with
// one of the given types.
func peerIs(c *Call, name string, types ...Type) bool {
	return c.Peer.Name == name && slices.Contains(types, c.Peer.Type)
}
