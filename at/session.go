package at

import (
	"slices"
	"strings"
)

// maxNameLen bounds the command name kept in a CommandState.
const maxNameLen = 16

// Key identifies a session: the endpoint pair of a bidirectional flow.
type Key string

// FlowKey builds the Key of the flow between endpoints a and b. The order
// of the endpoints does not matter.
func FlowKey(a, b string) Key {
	if a > b {
		a, b = b, a
	}
	return Key(a + "<->" + b)
}

// CommandState is the most recently started command of one direction.
type CommandState struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
	// Expected and Consumed count continuation lines. While Expected is
	// larger, the next line of the direction is data.
	Expected int `json:"expected"`
	Consumed int `json:"consumed"`
	// Length is the payload length the command declared for its data
	// lines, zero when it declares none.
	Length int `json:"length,omitempty"`
	// Frame is the number of the frame that started the command.
	Frame uint64 `json:"frame"`
	// Continuation names the registry continuation handler for data lines.
	Continuation string `json:"continuation,omitempty"`
}

// Awaiting reports whether the next line is a continuation.
func (s CommandState) Awaiting() bool {
	return s.Expected > s.Consumed
}

func (s *CommandState) reset(name string, typ Type, frame uint64) {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	*s = CommandState{Name: name, Type: typ, Frame: frame}
}

// States holds the command state of both directions of a session, indexed
// by initiator (DTE) then responder (DCE).
type States [2]CommandState

// Of returns the state of the direction the role speaks in.
func (s States) Of(r Role) CommandState {
	return s[r.slot()]
}

type session struct {
	current States
	// before holds, per frame analyzed, the states the first pass started
	// from. Presence in the map is what makes a frame visited.
	before map[uint64]States
}

// Store keeps per-session command state for one capture. It is not safe
// for concurrent use; a capture is analyzed by one goroutine.
type Store struct {
	sessions map[Key]*session
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[Key]*session)}
}

func (s *Store) session(key Key) *session {
	sess, ok := s.sessions[key]
	if !ok {
		sess = &session{before: make(map[uint64]States)}
		s.sessions[key] = sess
	}
	return sess
}

// Get returns the states frame must be analyzed with and whether the frame
// was already visited. A visited frame gets the states its first pass
// started from, so analyzing it again yields the same result whatever
// frames were committed since.
func (s *Store) Get(key Key, frame uint64) (States, bool) {
	sess := s.session(key)
	if prior, ok := sess.before[frame]; ok {
		return prior, true
	}
	return sess.current, false
}

// Commit persists states as the session state after frame. Only the first
// pass over a frame commits; later calls return false and change nothing.
func (s *Store) Commit(key Key, frame uint64, states States) bool {
	sess := s.session(key)
	if _, ok := sess.before[frame]; ok {
		return false
	}
	sess.before[frame] = sess.current
	sess.current = states
	return true
}

// Current returns the latest committed states of a session.
func (s *Store) Current(key Key) (States, bool) {
	sess, ok := s.sessions[key]
	if !ok {
		return States{}, false
	}
	return sess.current, true
}

// Visited reports whether frame was committed for the session.
func (s *Store) Visited(key Key, frame uint64) bool {
	sess, ok := s.sessions[key]
	if !ok {
		return false
	}
	_, ok = sess.before[frame]
	return ok
}

// Keys lists the known sessions in order.
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b Key) int { return strings.Compare(string(a), string(b)) })
	return keys
}

// Len is the number of sessions.
func (s *Store) Len() int { return len(s.sessions) }
