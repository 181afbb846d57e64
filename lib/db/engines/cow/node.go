package cow

import (
	"sort"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/token"
)

// --------------------------------------------------------------------------
// Trie Node
// --------------------------------------------------------------------------

// node is a single node of the persistent, path-compressed trie.
//
// A node represents the run of symbols in prefix that follows the end of its parent. The
// root is the only node with an empty prefix. Children are kept sorted by the first symbol
// of their prefix, so no two children start with the same symbol.
//
// Invariants (checked in tests):
//   - every non-root node has a non-empty prefix
//   - every non-root node is terminal or has at least two children
//   - nodes are never modified after they became reachable from a published snapshot
type node struct {
	prefix   token.Path
	children []*node
	terminal bool
	value    []byte
}

// clone returns a shallow copy of n with its own children slice. The children themselves
// are shared.
func (n *node) clone() *node {
	c := *n
	if n.children != nil {
		c.children = make([]*node, len(n.children), len(n.children)+1)
		copy(c.children, n.children)
	}
	return &c
}

// withPrefix returns a copy of n with a different prefix, sharing everything else.
func (n *node) withPrefix(prefix token.Path) *node {
	c := *n
	c.prefix = prefix
	return &c
}

// childIndex returns the index of the child starting with s, or the position it would have
// to be inserted at if no such child exists.
func (n *node) childIndex(s token.Symbol) (int, bool) {
	i := sort.Search(len(n.children), func(i int) bool {
		return n.children[i].prefix[0].Compare(s) >= 0
	})
	return i, i < len(n.children) && n.children[i].prefix[0] == s
}

// child returns the child starting with s, or nil.
func (n *node) child(s token.Symbol) *node {
	if i, ok := n.childIndex(s); ok {
		return n.children[i]
	}
	return nil
}

func commonPrefixLen(a, b token.Path) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func concat(a, b token.Path) token.Path {
	out := make(token.Path, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

// --------------------------------------------------------------------------
// Path-Copying Write Operations
// --------------------------------------------------------------------------

// insertAt stores value under rest below n and returns the replacement for n. Only the nodes
// on the way from n to the terminal node are copied, n itself is never modified. The rest
// slice must not be modified by the caller afterward since new nodes keep sub-slices of it.
func insertAt(n *node, rest token.Path, value []byte) (*node, db.Outcome) {
	if len(rest) == 0 {
		c := n.clone()
		out := db.OutcomeInserted
		if n.terminal {
			out = db.OutcomeReplaced
		}
		c.terminal = true
		c.value = value
		return c, out
	}

	i, found := n.childIndex(rest[0])
	c := n.clone()

	// no child shares the first symbol: attach a new leaf holding the whole rest
	if !found {
		leaf := &node{prefix: rest, terminal: true, value: value}
		c.children = append(c.children, nil)
		copy(c.children[i+1:], c.children[i:])
		c.children[i] = leaf
		return c, db.OutcomeInserted
	}

	child := n.children[i]
	common := commonPrefixLen(child.prefix, rest)

	// the child run is fully matched: descend
	if common == len(child.prefix) {
		newChild, out := insertAt(child, rest[common:], value)
		c.children[i] = newChild
		return c, out
	}

	// the run diverges (or rest ends) within the child: split the child's run
	mid := &node{prefix: child.prefix[:common]}
	tail := child.withPrefix(child.prefix[common:])
	if common == len(rest) {
		mid.terminal = true
		mid.value = value
		mid.children = []*node{tail}
	} else {
		leaf := &node{prefix: rest[common:], terminal: true, value: value}
		if leaf.prefix[0].Compare(tail.prefix[0]) < 0 {
			mid.children = []*node{leaf, tail}
		} else {
			mid.children = []*node{tail, leaf}
		}
	}
	c.children[i] = mid
	return c, db.OutcomeInserted
}

// deleteAt removes rest below n. It returns the replacement for n (which is n itself if
// nothing was removed) and whether a path was removed. The returned node is not normalized:
// the caller is responsible for pruning or merging it (see normalizeChild), the root never
// gets normalized.
func deleteAt(n *node, rest token.Path) (*node, bool) {
	if len(rest) == 0 {
		if !n.terminal {
			return n, false
		}
		c := *n
		c.terminal = false
		c.value = nil
		return &c, true
	}

	i, found := n.childIndex(rest[0])
	if !found {
		return n, false
	}
	child := n.children[i]
	if !rest.HasPrefix(child.prefix) {
		return n, false
	}
	newChild, removed := deleteAt(child, rest[len(child.prefix):])
	if !removed {
		return n, false
	}

	c := n.clone()
	if replacement := normalizeChild(newChild); replacement != nil {
		c.children[i] = replacement
	} else {
		c.children = append(c.children[:i], c.children[i+1:]...)
		if len(c.children) == 0 {
			c.children = nil
		}
	}
	return c, true
}

// normalizeChild restores the compression invariants of a non-root node after a delete:
// a dead leaf is pruned (nil is returned) and a non-terminal node with a single child is
// merged with that child.
func normalizeChild(n *node) *node {
	if n.terminal {
		return n
	}
	switch len(n.children) {
	case 0:
		return nil
	case 1:
		only := n.children[0]
		return only.withPrefix(concat(n.prefix, only.prefix))
	default:
		return n
	}
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// find returns the terminal node stored for path, skipping compressed runs.
func find(root *node, path token.Path) (*node, bool) {
	n := root
	rest := path
	for len(rest) > 0 {
		child := n.child(rest[0])
		if child == nil || !rest.HasPrefix(child.prefix) {
			return nil, false
		}
		rest = rest[len(child.prefix):]
		n = child
	}
	return n, n.terminal
}

// locate returns the topmost node below which every stored path starts with prefix,
// together with the full path leading to the end of that node's run. The prefix may end
// in the middle of a run.
func locate(root *node, prefix token.Path) (*node, token.Path, bool) {
	n := root
	depth := 0
	for depth < len(prefix) {
		rest := prefix[depth:]
		child := n.child(rest[0])
		if child == nil {
			return nil, nil, false
		}
		common := commonPrefixLen(child.prefix, rest)
		if common < len(child.prefix) && common < len(rest) {
			return nil, nil, false
		}
		if common == len(rest) {
			// prefix ends within (or exactly at the end of) the child run
			return child, concat(prefix, child.prefix[common:]), true
		}
		depth += len(child.prefix)
		n = child
	}
	return n, prefix.Clone(), true
}
