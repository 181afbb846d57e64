package cow

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
)

// snapshot is an immutable view of the trie. A new snapshot is published for every write;
// readers obtain the current one with a single atomic load and keep it alive for as long as
// they hold a reference (e.g. through an open cursor).
type snapshot struct {
	root     *node
	size     int
	version  uint64
	keysOnly bool

	// shared with the database, counts cursors that were not closed yet
	openCursors *atomic.Int64
}

func (s *snapshot) Version() uint64 { return s.version }

func (s *snapshot) Size() int { return s.size }

// Lookup returns a copy of the payload stored for path.
//
// Thread-safety: This method is thread-safe, snapshots are immutable.
func (s *snapshot) Lookup(path token.Path) ([]byte, bool) {
	n, ok := find(s.root, path)
	if !ok {
		return nil, false
	}
	if s.keysOnly || n.value == nil {
		return nil, true
	}
	out := make([]byte, len(n.value))
	copy(out, n.value)
	return out, true
}

// Prefix returns a cursor over all paths starting with prefix.
func (s *snapshot) Prefix(ctx context.Context, prefix token.Path) db.RestartableCursor {
	c := &prefixCursor{cursorBase: newCursorBase(ctx, s)}
	if start, base, ok := locate(s.root, prefix); ok {
		c.start = start
		c.base = base
	}
	c.Reset()
	return c
}

// Match returns a cursor over all paths matching pattern. Invalid patterns are rejected
// before any traversal happens.
func (s *snapshot) Match(ctx context.Context, pattern token.Pattern) (db.RestartableCursor, error) {
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	return newMatchCursor(ctx, s, pattern), nil
}

// Children returns a cursor over the symbols that follow prefix. The prefix may end in the
// middle of a compressed run, the run then supplies the only next symbol.
func (s *snapshot) Children(ctx context.Context, prefix token.Path) db.RestartableCursor {
	c := &childrenCursor{cursorBase: newCursorBase(ctx, s), prefix: prefix.Clone()}
	if n, full, ok := locate(s.root, prefix); ok {
		c.n = n
		c.full = full
	}
	return c
}

func (s *snapshot) Save(w io.Writer) error {
	return writeSnapshot(w, s)
}

// --------------------------------------------------------------------------
// Cursor Base
// --------------------------------------------------------------------------

// cursorBase holds the state shared by all cursor types: the snapshot reference, the
// context and the current result.
type cursorBase struct {
	ctx    context.Context
	snap   *snapshot
	cur    db.Entry
	err    error
	closed bool
}

func newCursorBase(ctx context.Context, s *snapshot) cursorBase {
	if ctx == nil {
		ctx = context.Background()
	}
	s.openCursors.Add(1)
	return cursorBase{ctx: ctx, snap: s}
}

func (c *cursorBase) Entry() db.Entry { return c.cur }

func (c *cursorBase) Err() error { return c.err }

// cancelled records the context error if the context of the cursor is done.
func (c *cursorBase) cancelled() bool {
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return true
	}
	return false
}

// value returns the payload to report for a terminal node.
func (c *cursorBase) value(n *node) []byte {
	if c.snap.keysOnly {
		return nil
	}
	return n.value
}

// release drops the snapshot reference. It returns false if the cursor was closed before.
func (c *cursorBase) release() bool {
	if c.closed {
		return false
	}
	c.closed = true
	c.cur = db.Entry{}
	c.snap.openCursors.Add(-1)
	return true
}
