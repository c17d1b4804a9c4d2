package at_test

import (
	"testing"

	"i4.energy/across/atsniff/at"
)

func TestRegistryFirstMatch(t *testing.T) {
	entries := []at.Descriptor{
		{Name: "+C", LongName: "short"},
		{Name: "+CSQ", LongName: "long"},
	}
	r := at.NewRegistry(entries, nil)

	d, ok := r.Lookup("+CSQ")
	if !ok {
		t.Fatal("Lookup(+CSQ) found nothing")
	}
	if d.Name != "+C" {
		t.Errorf("Lookup(+CSQ) = %q, want the first declared prefix %q", d.Name, "+C")
	}

	// The registry keeps its own copy of the table.
	entries[0].Name = "+X"
	if d, _ := r.Lookup("+CSQ"); d.Name != "+C" {
		t.Errorf("Lookup after caller mutation = %q, want %q", d.Name, "+C")
	}
}

func TestDefaultRegistryLookup(t *testing.T) {
	r := at.DefaultRegistry()
	tests := []struct {
		candidate string
		expected  string
		found     bool
	}{
		{candidate: "", expected: "", found: true},
		{candidate: "+CSQ", expected: "+CSQ", found: true},
		{candidate: "+csq", expected: "+CSQ", found: true},
		{candidate: "+CME ERROR", expected: "+CME ERROR", found: true},
		{candidate: "+CMEE", expected: "+CMEE", found: true},
		{candidate: "ERROR", expected: "ERROR", found: true},
		{candidate: "E0", expected: "E", found: true},
		{candidate: "OK", expected: "OK", found: true},
		{candidate: "O", expected: "O", found: true},
		{candidate: "&D2", expected: "&D", found: true},
		{candidate: "D+4670", expected: "D", found: true},
		{candidate: "CONNECT 9600", expected: "CONNECT", found: true},
		{candidate: "+FOO", found: false},
		{candidate: "#SHDN", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			d, ok := r.Lookup(tt.candidate)
			if ok != tt.found {
				t.Fatalf("Lookup(%q) found = %v, want %v", tt.candidate, ok, tt.found)
			}
			if ok && d.Name != tt.expected {
				t.Errorf("Lookup(%q) = %q, want %q", tt.candidate, d.Name, tt.expected)
			}
		})
	}
}

func TestDefaultRegistryResultCodesBeforeBasicCommands(t *testing.T) {
	names := at.DefaultRegistry().Names()
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	pairs := [][2]string{{"ERROR", "E"}, {"OK", "O"}, {"NO CARRIER", "&C"}}
	for _, p := range pairs {
		if index[p[0]] >= index[p[1]] {
			t.Errorf("%q is declared after %q", p[0], p[1])
		}
	}
}

func TestAllow(t *testing.T) {
	check := at.Allow(at.Types(at.TypeAction), at.Types(at.TypeResponse))
	tests := []struct {
		role     at.Role
		typ      at.Type
		expected bool
	}{
		{role: at.DTE, typ: at.TypeAction, expected: true},
		{role: at.DTE, typ: at.TypeResponse, expected: false},
		{role: at.DCE, typ: at.TypeResponse, expected: true},
		{role: at.DCE, typ: at.TypeAction, expected: false},
	}
	for _, tt := range tests {
		if got := check(tt.role, tt.typ); got != tt.expected {
			t.Errorf("check(%v, %v) = %v, want %v", tt.role, tt.typ, got, tt.expected)
		}
	}
}
