package at

import "bytes"

// minHeuristicRun is the length a printable run must exceed when zero
// padding follows it.
const minHeuristicRun = 2

var heuristicMagic = [][]byte{
	[]byte(CRLF),
	[]byte("\r\r\n"),
	[]byte("AT"),
}

// Heuristic decides whether data on a transport without a registered
// channel looks like an AT stream. It returns the printable part to analyze.
//
// The data must start with CRLF, CR CR LF or "AT". Its leading run of
// printable ASCII, CR and LF bytes must either cover all of it, or be longer
// than minHeuristicRun and be followed by zero padding only.
func Heuristic(data []byte) ([]byte, bool) {
	magic := false
	for _, m := range heuristicMagic {
		if bytes.HasPrefix(data, m) {
			magic = true
			break
		}
	}
	if !magic {
		return nil, false
	}

	run := printableRun(data)
	if run == len(data) {
		return data, true
	}
	if run <= minHeuristicRun || !zeroPadded(data[run:]) {
		return nil, false
	}
	return data[:run], true
}

func printableRun(data []byte) int {
	for i, c := range data {
		if (c < 0x20 || c > 0x7e) && c != '\r' && c != '\n' {
			return i
		}
	}
	return len(data)
}

func zeroPadded(data []byte) bool {
	for _, c := range data {
		if c != 0 {
			return false
		}
	}
	return true
}
