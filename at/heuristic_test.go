package at_test

import (
	"testing"

	"i4.energy/across/atsniff/at"
)

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		accept   bool
		expected string
	}{
		{name: "CRLF run with zero padding", input: "\r\nOK\r\n\x00\x00\x00", accept: true, expected: "\r\nOK\r\n"},
		{name: "Whole buffer printable", input: "ATI\r", accept: true, expected: "ATI\r"},
		{name: "CR CR LF magic", input: "\r\r\nOK", accept: true, expected: "\r\r\nOK"},
		{name: "Non-zero bytes after the run", input: "\r\nOK\r\n\x00\x01", accept: false},
		{name: "Run too short for padding", input: "AT\x00\x00", accept: false},
		{name: "CRLF alone before padding", input: "\r\n\x00", accept: false},
		{name: "Shortest padded run", input: "AT\r\x00", accept: true, expected: "AT\r"},
		{name: "No magic", input: "OK\r\n", accept: false},
		{name: "Binary", input: "\x00AT", accept: false},
		{name: "Empty", input: "", accept: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := at.Heuristic([]byte(tt.input))
			if ok != tt.accept {
				t.Fatalf("Heuristic(%q) accepted = %v, want %v", tt.input, ok, tt.accept)
			}
			if ok && string(got) != tt.expected {
				t.Errorf("Heuristic(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
