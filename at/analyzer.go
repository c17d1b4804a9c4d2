package at

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNoAnalyzer is recorded on a handoff whose analyzer is not registered.
var ErrNoAnalyzer = errors.New("no analyzer registered")

// Analyzer turns AT text frames into records. It keeps per-session command
// state so multi-line responses are tied together across frames, and it
// can be asked to analyze a frame again at any time: a revisit reads the
// state the first pass saw and never writes.
//
// An Analyzer is not safe for concurrent use.
type Analyzer struct {
	registry *Registry
	resolver Resolver
	store    *Store
	handoffs map[string]HandoffFunc
	logger   *slog.Logger
}

// New creates an Analyzer with its own session store.
func New(config Config) *Analyzer {
	config.setDefaults()
	return &Analyzer{
		registry: config.registry,
		resolver: Resolver{Override: config.role},
		store:    NewStore(),
		handoffs: config.handoffs,
		logger:   config.logger,
	}
}

// Store exposes the session store of the analyzer.
func (a *Analyzer) Store() *Store { return a.store }

// Analyze analyzes one frame. On the first pass over the frame the updated
// session state is committed once the whole frame is done.
func (a *Analyzer) Analyze(f Frame) Record {
	role := a.resolver.Resolve(f.Direction)
	states, visited := a.store.Get(f.Key, f.Number)

	rec := Record{Frame: f.Number, Key: f.Key, Role: role, Revisit: visited}
	p := &parser{
		a:     a,
		data:  f.Data,
		upper: upperASCII(f.Data),
		role:  role,
		frame: f.Number,
		state: &states[role.slot()],
		peer:  states[role.peer().slot()],
		rec:   &rec,
	}
	p.run()

	if !visited {
		a.store.Commit(f.Key, f.Number, states)
	}
	return rec
}

// AnalyzeHeuristic applies the heuristic framer first and analyzes only the
// printable part. It reports false, with no side effects, when the data
// does not look like AT text.
func (a *Analyzer) AnalyzeHeuristic(f Frame) (Record, bool) {
	data, ok := Heuristic(f.Data)
	if !ok {
		return Record{}, false
	}
	f.Data = data
	return a.Analyze(f), true
}

// Run analyzes frames until the channel is closed or ctx is done, sending
// each record to out.
func (a *Analyzer) Run(ctx context.Context, frames <-chan Frame, out chan<- Record) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			rec := a.Analyze(f)
			select {
			case out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

type parser struct {
	a     *Analyzer
	data  []byte
	upper []byte
	role  Role
	frame uint64
	state *CommandState
	peer  CommandState
	rec   *Record
}

func (p *parser) run() {
	pos := 0
	// A DTE command line must start with "AT"; commands chained with ';'
	// do not repeat it.
	lineStart := true
	for pos < len(p.data) {
		if p.state.Awaiting() {
			pos = p.continuation(pos)
			continue
		}

		switch {
		case p.role == DCE:
			pos = skipLineSpace(p.data, pos)
			if pos >= len(p.data) {
				return
			}
		case lineStart:
			i := bytes.Index(p.upper[pos:], []byte("AT"))
			if i < 0 {
				p.noise(pos, len(p.data))
				return
			}
			p.noise(pos, pos+i)
			pos += i + 2
			lineStart = false
		case p.data[pos] == '\r' || p.data[pos] == '\n':
			pos++
			lineStart = true
			continue
		}

		var chained bool
		pos, chained = p.command(pos)
		if !chained {
			lineStart = true
		}
	}
}

// noise records data[from:to] as ignored unless it is only line space.
func (p *parser) noise(from, to int) {
	if from >= to || skipLineSpace(p.data[from:to], 0) == to-from {
		return
	}
	p.rec.Noise = append(p.rec.Noise, Span{Offset: from, Data: string(p.data[from:to])})
}

func (p *parser) advise(kind Kind, offset int, command, format string, args ...any) {
	adv := Advisory{Kind: kind, Offset: offset, Command: command, Message: fmt.Sprintf(format, args...)}
	p.rec.Advisories = append(p.rec.Advisories, adv)
	p.a.logger.Debug("Advisory",
		"frame", p.frame,
		"session", p.rec.Key,
		"role", p.role,
		"kind", kind,
		"command", command,
		"offset", offset,
		"message", adv.Message)
}

// command parses one command or response starting at pos and returns where
// the next one starts and whether it is chained with ';'.
func (p *parser) command(pos int) (int, bool) {
	start := pos
	end := scanName(p.upper, pos)
	candidate := string(p.upper[start:end])

	desc, known := p.a.registry.Lookup(candidate)
	cmd := Command{Offset: start, Known: known}
	if known {
		cmd.Name = desc.Name
		cmd.LongName = desc.LongName
		pos = start + len(desc.Name)
	} else {
		cmd.Name = strings.TrimRight(string(p.data[start:end]), " \t\n")
		pos = end
		p.advise(KindUnknownCommand, start, cmd.Name, "unknown command %q", cmd.Name)
	}

	typ, n := ClassifyType(p.role, p.data[pos:])
	pos += n
	cmd.Type = typ
	p.state.reset(cmd.Name, typ, p.frame)

	if known && desc.Check != nil && !desc.Check(p.role, typ) {
		p.advise(KindRoleMismatch, start, cmd.Name, "%s %s is not valid from the %s", displayName(cmd.Name), typ, p.role)
	}

	var chained bool
	switch {
	case typ.hasParams():
		pos, chained = p.params(pos, desc, &cmd)
	case n > 0 && (p.data[pos-1] == '\r' || p.data[pos-1] == '\n'):
		// the suffix already ended the line
		if pos < len(p.data) && p.data[pos] == '\n' {
			pos++
		}
	default:
		pos, chained = p.terminate(pos)
	}

	p.rec.Commands = append(p.rec.Commands, cmd)
	if pos == start {
		pos++
	}
	return pos, chained
}

// terminate skips to the end of a header-only command.
func (p *parser) terminate(pos int) (int, bool) {
	for pos < len(p.data) {
		switch p.data[pos] {
		case ';':
			if p.role == DTE {
				return pos + 1, true
			}
		case '\n':
			return pos + 1, false
		case '\r':
			return p.lineEnd(pos), false
		}
		pos++
	}
	return pos, false
}

func (p *parser) lineEnd(pos int) int {
	if pos < len(p.data) && p.data[pos] == '\r' {
		pos++
	}
	if pos < len(p.data) && p.data[pos] == '\n' {
		pos++
	}
	return pos
}

// params walks the parameter fields of an action or response and calls
// the command handler for each of them.
func (p *parser) params(pos int, desc *Descriptor, cmd *Command) (int, bool) {
	call := &Call{Role: p.role, Type: cmd.Type, Peer: p.peer, p: p, cmd: cmd}
	for index := 0; ; index++ {
		pos = skipBlank(p.data, pos)
		if pos >= len(p.data) {
			return pos, false
		}
		if c := p.data[pos]; c == '\r' || c == '\n' {
			return p.lineEnd(pos), false
		}

		end := scanField(p.data, pos)
		p.field(call, desc, Token{Raw: p.data[pos:end], Index: index, Offset: pos})
		pos = end

		if p.role == DCE && bytes.HasPrefix(p.data[pos:], []byte(CRLF)) {
			return pos + len(CRLF), false
		}
		if pos >= len(p.data) {
			return pos, false
		}
		switch p.data[pos] {
		case ',':
			pos++
		case ';':
			return pos + 1, true
		case '\r':
			return p.lineEnd(pos), false
		}
	}
}

func (p *parser) field(call *Call, desc *Descriptor, tok Token) {
	f := Field{Index: tok.Index, Offset: tok.Offset, Value: string(tok.Raw)}
	call.field = &f
	call.tok = tok
	if desc != nil && desc.Param != nil {
		f.Recognized = desc.Param(call, tok)
	}
	if !f.Recognized {
		p.advise(KindUnknownParameter, tok.Offset, call.cmd.Name,
			"unrecognized parameter %d %q of %s", tok.Index, tok.Raw, displayName(call.cmd.Name))
	}
	call.field = nil
	call.cmd.Fields = append(call.cmd.Fields, f)
}

// continuation hands the next line to the continuation handler of the
// pending command.
func (p *parser) continuation(pos int) int {
	start := skipLineSpace(p.data, pos)
	if start >= len(p.data) {
		return start
	}
	end := len(p.data)
	if i := bytes.IndexByte(p.data[start:], '\r'); i >= 0 {
		end = start + i
	}
	line := p.data[start:end]

	part := Part{Command: p.state.Name, Index: p.state.Consumed, Offset: start, Data: string(line)}
	d := &Data{Role: p.role, Command: p.state.Name, Index: p.state.Consumed, Length: p.state.Length, p: p, part: &part}
	if fn, ok := p.a.registry.Continuation(p.state.Continuation); ok {
		fn(d, line)
	} else {
		p.advise(KindMalformedPayload, start, p.state.Name, "no continuation handler %q", p.state.Continuation)
	}
	p.state.Consumed++
	p.rec.Parts = append(p.rec.Parts, part)

	return p.lineEnd(end)
}

func (p *parser) handoff(analyzer string, payload []byte) {
	h := Handoff{Analyzer: analyzer, Role: p.role, Payload: bytes.Clone(payload)}
	fn, ok := p.a.handoffs[analyzer]
	if !ok {
		h.Err = ErrNoAnalyzer.Error()
		p.rec.Handoffs = append(p.rec.Handoffs, h)
		return
	}
	summary, err := fn(p.role, h.Payload)
	h.Summary = summary
	if err != nil {
		h.Err = err.Error()
		p.a.logger.Debug("Handoff failed", "frame", p.frame, "analyzer", analyzer, "error", err)
	}
	p.rec.Handoffs = append(p.rec.Handoffs, h)
}

func displayName(name string) string {
	if name == "" {
		return "AT"
	}
	return name
}

// Call is the context of one command's parameter loop. A new Call is made
// for every command; handlers may keep a value between fields in Scratch.
type Call struct {
	Role Role
	Type Type
	// Peer is the state of the other direction when the frame started.
	Peer CommandState
	// Scratch is owned by the handler for the duration of the command.
	Scratch int

	p     *parser
	cmd   *Command
	field *Field
	tok   Token
}

// Command is the name of the command being parsed.
func (c *Call) Command() string { return c.cmd.Name }

// Advise raises an advisory at the current field.
func (c *Call) Advise(kind Kind, format string, args ...any) {
	c.p.advise(kind, c.tok.Offset, c.cmd.Name, format, args...)
}

// Label names the current field.
func (c *Call) Label(label string) {
	if c.field != nil {
		c.field.Label = label
	}
}

// Expect marks the command as awaiting one more data line, to be handled
// by the named continuation handler.
func (c *Call) Expect(continuation string) {
	c.p.state.Expected++
	c.p.state.Continuation = continuation
}

// ExpectLength is Expect for a data line whose payload length the command
// declares, in octets.
func (c *Call) ExpectLength(continuation string, length int) {
	c.Expect(continuation)
	c.p.state.Length = length
}

// Handoff passes a payload to a named external analyzer.
func (c *Call) Handoff(analyzer string, payload []byte) {
	c.p.handoff(analyzer, payload)
}

// Data is the context of one continuation line.
type Data struct {
	Role Role
	// Command is the command the line belongs to.
	Command string
	// Index counts the continuation lines of the command, from zero.
	Index int
	// Length is the payload length declared by the command, or zero.
	Length int

	p    *parser
	part *Part
}

// Advise raises an advisory at the start of the line.
func (d *Data) Advise(kind Kind, format string, args ...any) {
	d.p.advise(kind, d.part.Offset, d.Command, format, args...)
}

// Label names the line.
func (d *Data) Label(label string) { d.part.Label = label }

// Handoff passes a decoded payload to a named external analyzer.
func (d *Data) Handoff(analyzer string, payload []byte) {
	d.p.handoff(analyzer, payload)
}
