package at

import "strings"

// CheckFunc decides whether a command may appear with the given role and type.
type CheckFunc func(role Role, typ Type) bool

// ParamFunc handles one parameter field of a command. It returns false when
// the field is not recognized.
type ParamFunc func(c *Call, tok Token) bool

// ContinuationFunc handles one data line following a command that asked for
// it with Call.Expect.
type ContinuationFunc func(d *Data, line []byte)

// Descriptor describes a known command.
type Descriptor struct {
	// Name is matched as a prefix of the upper-cased candidate name. The
	// empty name only matches an empty candidate (a bare "AT").
	Name     string
	LongName string
	Check    CheckFunc
	Param    ParamFunc
}

// Allow builds a CheckFunc accepting the given types per role.
func Allow(dte, dce TypeSet) CheckFunc {
	return func(role Role, typ Type) bool {
		if role == DCE {
			return dce.Has(typ)
		}
		return dte.Has(typ)
	}
}

// Registry is an immutable, declaration-ordered command table plus the
// named continuation handlers its commands refer to.
type Registry struct {
	entries       []Descriptor
	continuations map[string]ContinuationFunc
}

// NewRegistry copies entries and continuations into a new Registry. The
// order of entries is the lookup order.
func NewRegistry(entries []Descriptor, continuations map[string]ContinuationFunc) *Registry {
	r := &Registry{
		entries:       make([]Descriptor, len(entries)),
		continuations: make(map[string]ContinuationFunc, len(continuations)),
	}
	copy(r.entries, entries)
	for name, fn := range continuations {
		r.continuations[name] = fn
	}
	return r
}

// Lookup returns the first entry, in declaration order, whose name is a
// prefix of candidate. It does not look for the longest match: with "+C"
// declared before "+CSQ", "+CSQ" resolves to "+C".
func (r *Registry) Lookup(candidate string) (*Descriptor, bool) {
	candidate = strings.ToUpper(candidate)
	for i := range r.entries {
		d := &r.entries[i]
		if d.Name == "" {
			if candidate == "" {
				return d, true
			}
			continue
		}
		if strings.HasPrefix(candidate, d.Name) {
			return d, true
		}
	}
	return nil, false
}

// Continuation returns the continuation handler registered under name.
func (r *Registry) Continuation(name string) (ContinuationFunc, bool) {
	fn, ok := r.continuations[name]
	return fn, ok
}

// Names lists the command names in lookup order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, d := range r.entries {
		names[i] = d.Name
	}
	return names
}

// Len is the number of commands.
func (r *Registry) Len() int { return len(r.entries) }
