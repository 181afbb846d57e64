package cow

import (
	"context"
	"slices"

	"github.com/ValentinKolb/dTrie/lib/token"
)

// --------------------------------------------------------------------------
// Bindings
// --------------------------------------------------------------------------

// binding is a persistent list of variable bindings. Branches of the search share the
// bindings established before they forked.
type binding struct {
	name  string
	value token.Path
	next  *binding
}

func (b *binding) lookup(name string) (token.Path, bool) {
	for ; b != nil; b = b.next {
		if b.name == name {
			return b.value, true
		}
	}
	return nil, false
}

func (b *binding) with(name string, value token.Path) *binding {
	return &binding{name: name, value: value.Clone(), next: b}
}

// --------------------------------------------------------------------------
// Match Cursor
// --------------------------------------------------------------------------

// capture describes what a pattern state is doing at its current pattern position.
type capture uint8

const (
	capNone capture = iota // processing pattern elements
	capVar                 // collecting the symbols of one term for a variable
	capMany                // collecting symbols for a wildcard-many with elements after it
	capTail                // enumerating the subtree for a trailing wildcard-many
)

// matchState is one way of having matched the pattern against the path consumed so far.
type matchState struct {
	pi    int // next pattern element, or the element being captured
	binds *binding
	mode  capture
	need  int        // capVar: symbols missing to complete the term
	start int        // capVar, capMany, capTail: path length when the capture started
	seq   token.Path // symbols that must follow next (literal run or bound value)
}

// matchFrame is a pending trie position. When it is visited the path buffer is truncated
// to base and seg (the symbol consumed to reach the position) is appended. states have
// already consumed seg.
type matchFrame struct {
	n      *node // trie position: n.prefix[:off] is consumed
	off    int
	base   int
	seg    token.Path
	states []matchState
}

// matchCursor lazily enumerates every stored path matching a pattern.
//
// The search is a single depth-first traversal of the trie driven by an explicit stack.
// Every frame carries the set of pattern states that are still alive at its position, so
// all alternatives of a wildcard share one walk and results come out in the same order
// as a prefix enumeration: a path before its extensions, children in symbol order.
// Children that no state can consume are never visited.
//
// A path that matches in several ways (more than one wildcard-many) is reported once per
// distinct assignment, the zero-width alternative of a wildcard first.
type matchCursor struct {
	cursorBase
	pattern token.Pattern
	lits    token.Path // lits[i] is the symbol of pattern[i] if it is a literal
	litEnd  []int      // litEnd[i] is the end of the literal run starting at i
	stack   []matchFrame
	path    token.Path

	// accepting states at the last visited position, not reported yet
	pending     []matchState
	pendingNode *node
}

func newMatchCursor(ctx context.Context, s *snapshot, pattern token.Pattern) *matchCursor {
	c := &matchCursor{
		cursorBase: newCursorBase(ctx, s),
		pattern:    pattern,
		lits:       make(token.Path, len(pattern)),
		litEnd:     make([]int, len(pattern)),
	}
	end := len(pattern)
	for i := len(pattern) - 1; i >= 0; i-- {
		if pattern[i].Kind != token.ElemLiteral {
			end = i
			continue
		}
		c.lits[i] = pattern[i].Symbol
		c.litEnd[i] = end
	}
	c.Reset()
	return c
}

// Next advances to the next match. The context is checked on every consumed symbol.
func (c *matchCursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	for {
		if len(c.pending) > 0 {
			st := c.pending[0]
			c.pending = c.pending[1:]
			c.emit(&st)
			return true
		}
		if len(c.stack) == 0 {
			return false
		}
		if c.cancelled() {
			c.stack = nil
			return false
		}
		f := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		c.path = append(c.path[:f.base], f.seg...)
		c.visit(f)
		if c.err != nil {
			c.stack = nil
			c.pending = nil
			return false
		}
	}
}

// visit walks the rest of the run of f.n, collects the accepting states at its end and
// pushes the children some state can continue into.
func (c *matchCursor) visit(f matchFrame) {
	n, off, states := f.n, f.off, f.states
	for off < len(n.prefix) {
		s := n.prefix[off]
		states = c.step(c.expand(states), s)
		if len(states) == 0 || c.cancelled() {
			return
		}
		c.path = append(c.path, s)
		off++
	}

	ready := c.expand(states)
	if n.terminal {
		for _, st := range ready {
			if st.mode == capTail || (st.mode == capNone && len(st.seq) == 0 && st.pi == len(c.pattern)) {
				c.pending = append(c.pending, st)
			}
		}
		c.pendingNode = n
	}

	wild := false
	var wanted []int
	for _, st := range ready {
		switch {
		case len(st.seq) > 0:
			if i, ok := n.childIndex(st.seq[0]); ok && !slices.Contains(wanted, i) {
				wanted = append(wanted, i)
			}
		case st.mode != capNone:
			wild = true
		}
	}
	if wild {
		wanted = wanted[:0]
		for i := range n.children {
			wanted = append(wanted, i)
		}
	} else {
		slices.Sort(wanted)
	}

	for j := len(wanted) - 1; j >= 0; j-- {
		child := n.children[wanted[j]]
		next := c.step(ready, child.prefix[0])
		if len(next) == 0 {
			continue
		}
		c.stack = append(c.stack, matchFrame{
			n:      child,
			off:    1,
			base:   len(c.path),
			seg:    child.prefix[:1],
			states: next,
		})
	}
}

// expand resolves every state to the positions where it waits for the next symbol:
// literals and bound names become required symbol runs, completed captures are bound and an
// unbound wildcard-many splits into its zero-width alternative (first) and the alternative
// that keeps capturing. States that cannot match any more are dropped.
func (c *matchCursor) expand(states []matchState) []matchState {
	out := make([]matchState, 0, len(states))
	var capturing []matchState
	for _, st := range states {
		capturing = capturing[:0]
	loop:
		for {
			switch {
			case len(st.seq) > 0, st.mode == capTail:
				out = append(out, st)
				break loop

			case st.mode == capVar:
				if st.need > 0 {
					out = append(out, st)
					break loop
				}
				c.finishCapture(&st)

			case st.mode == capMany:
				capturing = append(capturing, st)
				c.finishCapture(&st)

			case st.pi == len(c.pattern):
				out = append(out, st)
				break loop

			default:
				e := c.pattern[st.pi]
				if e.Kind == token.ElemLiteral {
					end := c.litEnd[st.pi]
					st.seq = c.lits[st.pi:end]
					st.pi = end
					continue
				}
				if !e.Anonymous() {
					if v, ok := st.binds.lookup(e.Name); ok {
						// a variable stands for exactly one term, also when a wildcard bound it
						if e.Kind == token.ElemVar && (len(v) == 0 || v.TermLen(0) != len(v)) {
							break loop
						}
						st.seq = v
						st.pi++
						continue
					}
				}
				st.start = len(c.path)
				switch {
				case e.Kind == token.ElemVar:
					st.mode = capVar
					st.need = 1
				case st.pi == len(c.pattern)-1:
					st.mode = capTail
				default:
					st.mode = capMany
				}
			}
		}
		for i := len(capturing) - 1; i >= 0; i-- {
			out = append(out, capturing[i])
		}
	}
	return out
}

// step returns the states that survive consuming s. The input states must be expanded.
func (c *matchCursor) step(states []matchState, s token.Symbol) []matchState {
	var out []matchState
	for _, st := range states {
		switch {
		case len(st.seq) > 0:
			if st.seq[0] != s {
				continue
			}
			st.seq = st.seq[1:]
		case st.mode == capVar:
			st.need += arity(s) - 1
		case st.mode == capMany, st.mode == capTail:
		default:
			// pattern exhausted, the path goes on
			continue
		}
		out = append(out, st)
	}
	return out
}

// finishCapture binds the captured symbols to the current element and moves on.
func (c *matchCursor) finishCapture(st *matchState) {
	if e := c.pattern[st.pi]; !e.Anonymous() {
		st.binds = st.binds.with(e.Name, c.path[st.start:])
	}
	st.mode = capNone
	st.pi++
}

// emit publishes the current path as a result of the accepting state st.
func (c *matchCursor) emit(st *matchState) {
	b := make(map[string]token.Path)
	for l := st.binds; l != nil; l = l.next {
		if _, ok := b[l.name]; !ok {
			b[l.name] = l.value
		}
	}
	if st.mode == capTail {
		if name := c.pattern[st.pi].Name; name != "" && name != "_" {
			b[name] = c.path[st.start:].Clone()
		}
	}
	c.cur.Path = c.path.Clone()
	c.cur.Value = c.value(c.pendingNode)
	c.cur.Bindings = b
}

// Reset rewinds the cursor to the first result.
func (c *matchCursor) Reset() {
	if c.closed {
		return
	}
	c.err = nil
	c.path = c.path[:0]
	c.pending = nil
	c.stack = append(c.stack[:0], matchFrame{n: c.snap.root, states: []matchState{{}}})
}

// Close releases the snapshot reference of the cursor.
func (c *matchCursor) Close() error {
	if c.release() {
		c.stack = nil
		c.path = nil
		c.pending = nil
	}
	return nil
}

// arity returns the number of sub-terms announced by s, zero for non-header symbols.
func arity(s token.Symbol) int {
	if n, ok := s.ArityValue(); ok {
		return n
	}
	return 0
}
