package cow

import (
	"github.com/ValentinKolb/dTrie/lib/token"
)

// prefixFrame is a pending node of a prefix enumeration. end is the length of the path
// up to and including the node's run.
type prefixFrame struct {
	n   *node
	end int
}

// prefixCursor enumerates the subtree below start in pre-order, children in symbol order.
// The traversal uses an explicit stack, so the depth of the trie is only bounded by memory.
type prefixCursor struct {
	cursorBase
	start *node
	base  token.Path
	stack []prefixFrame
	path  token.Path
}

// Next advances to the next stored path. The context is checked on every visited node.
func (c *prefixCursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	for len(c.stack) > 0 {
		if c.cancelled() {
			c.stack = nil
			return false
		}
		f := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]

		c.path = append(c.path[:f.end-len(f.n.prefix)], f.n.prefix...)
		for i := len(f.n.children) - 1; i >= 0; i-- {
			child := f.n.children[i]
			c.stack = append(c.stack, prefixFrame{n: child, end: f.end + len(child.prefix)})
		}
		if f.n.terminal {
			c.cur.Path = c.path.Clone()
			c.cur.Value = c.value(f.n)
			return true
		}
	}
	return false
}

// Reset rewinds the cursor to the first result.
func (c *prefixCursor) Reset() {
	if c.closed {
		return
	}
	c.err = nil
	c.stack = c.stack[:0]
	c.path = append(c.path[:0], c.base...)
	if c.start != nil {
		c.stack = append(c.stack, prefixFrame{n: c.start, end: len(c.base)})
	}
}

// Close releases the snapshot reference of the cursor.
func (c *prefixCursor) Close() error {
	if c.release() {
		c.stack = nil
		c.path = nil
	}
	return nil
}

// childrenCursor enumerates the next symbols below a prefix. full is the path up to the end
// of the run of n, which is longer than prefix if prefix ends inside that run.
type childrenCursor struct {
	cursorBase
	n      *node
	prefix token.Path
	full   token.Path
	i      int
}

// Next advances to the next symbol. The context is checked on every call.
func (c *childrenCursor) Next() bool {
	if c.closed || c.err != nil || c.n == nil || c.cancelled() {
		return false
	}
	if len(c.full) > len(c.prefix) {
		if c.i > 0 {
			return false
		}
		c.i++
		c.set(c.full[len(c.prefix)], len(c.full) == len(c.prefix)+1 && c.n.terminal, c.n)
		return true
	}
	if c.i >= len(c.n.children) {
		return false
	}
	child := c.n.children[c.i]
	c.i++
	c.set(child.prefix[0], len(child.prefix) == 1 && child.terminal, child)
	return true
}

func (c *childrenCursor) set(s token.Symbol, stored bool, n *node) {
	path := make(token.Path, len(c.prefix), len(c.prefix)+1)
	copy(path, c.prefix)
	c.cur.Path = append(path, s)
	c.cur.Value = nil
	if stored {
		c.cur.Value = c.value(n)
	}
}

// Reset rewinds the cursor to the first symbol.
func (c *childrenCursor) Reset() {
	if c.closed {
		return
	}
	c.err = nil
	c.i = 0
}

// Close releases the snapshot reference of the cursor.
func (c *childrenCursor) Close() error {
	c.release()
	return nil
}
