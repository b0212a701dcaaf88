// ABOUTME: Prefix tree over grid-cell token strings
// ABOUTME: Insert-only index; prefix search via iterative DFS in lexicographic order

package trie

import (
	"fmt"
	"sort"
)

// Trie indexes values by token strings over a fixed alphabet and
// answers "all values whose token starts with X" queries.
//
// The trie exclusively owns its node graph. It is built by a single
// writer (Insert is not safe for concurrent use); once built it may be
// searched from any number of goroutines concurrently. There is no
// delete operation.
type Trie[V any] struct {
	alphabet *Alphabet
	root     *node[V]
	maxLen   int

	records  int
	tokens   int
	nodes    int
	maxDepth int
}

// node is one character position along some token's path. Children are
// kept as a slice sorted by edge character, so traversal in slice
// order is traversal in lexicographic order.
type node[V any] struct {
	edges    []edge[V]
	terminal bool
	values   []V
}

// edge links a node to the child reached by consuming one character.
// No two edges of a node share a character.
type edge[V any] struct {
	ch    byte
	child *node[V]
}

// Entry is one (token, value) pair produced by Search.
type Entry[V any] struct {
	Token string
	Value V
}

// Stats describes the current size of the trie.
type Stats struct {
	Records  int // total stored values, one per Insert call
	Tokens   int // distinct terminal tokens
	Nodes    int // allocated nodes including the root
	MaxDepth int // length of the longest inserted token
}

// Option configures a Trie at construction time.
type Option func(*options)

type options struct {
	maxTokenLength int
}

// WithMaxTokenLength bounds the length of insertable tokens, typically
// to the grid system's maximum hierarchy depth. Zero means unbounded.
func WithMaxTokenLength(n int) Option {
	return func(o *options) { o.maxTokenLength = n }
}

// New creates an empty trie over the given alphabet.
func New[V any](alphabet *Alphabet, opts ...Option) *Trie[V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Trie[V]{
		alphabet: alphabet,
		root:     &node[V]{},
		maxLen:   o.maxTokenLength,
		nodes:    1,
	}
}

// Insert adds value under token, creating any missing nodes along the
// path and marking the final node terminal. The empty token is legal
// and denotes the root. Inserting the same token again appends another
// value; nothing is ever overwritten or dropped, and a token that is a
// strict prefix of a previously inserted longer token still receives
// its value. Tokens with characters outside the alphabet are rejected.
func (t *Trie[V]) Insert(token string, value V) error {
	if err := t.alphabet.Validate(token); err != nil {
		return err
	}
	if t.maxLen > 0 && len(token) > t.maxLen {
		return fmt.Errorf("%w: %d characters, limit %d", ErrTokenTooLong, len(token), t.maxLen)
	}

	n := t.root
	for i := 0; i < len(token); i++ {
		child, created := n.ensureChild(token[i])
		if created {
			t.nodes++
		}
		n = child
	}
	if !n.terminal {
		n.terminal = true
		t.tokens++
	}
	n.values = append(n.values, value)
	t.records++
	if len(token) > t.maxDepth {
		t.maxDepth = len(token)
	}
	return nil
}

// Search returns every inserted (token, value) pair whose token starts
// with prefix, in deterministic order: lexicographic by token, then
// insertion order within a token. A prefix with no matching subtree,
// including one containing characters outside the alphabet, yields an
// empty result, not an error. Search("") returns everything. Cost is
// O(len(prefix) + result size).
func (t *Trie[V]) Search(prefix string) []Entry[V] {
	var out []Entry[V]
	t.WalkPrefix(prefix, func(token string, value V) bool {
		out = append(out, Entry[V]{Token: token, Value: value})
		return true
	})
	return out
}

// WalkPrefix streams the pairs Search would return to fn, in the same
// order, without materializing them. fn returning false stops the walk.
func (t *Trie[V]) WalkPrefix(prefix string, fn func(token string, value V) bool) {
	n := t.findNode(prefix)
	if n == nil {
		return
	}

	// Iterative depth-first traversal. Children are pushed in reverse
	// so they pop in lexicographic order; a terminal node emits before
	// its descendants, which keeps tokens sorted (shorter first).
	type frame struct {
		n     *node[V]
		token string
	}
	stack := []frame{{n, prefix}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.n.terminal {
			for _, v := range f.n.values {
				if !fn(f.token, v) {
					return
				}
			}
		}
		for i := len(f.n.edges) - 1; i >= 0; i-- {
			e := f.n.edges[i]
			stack = append(stack, frame{e.child, f.token + string(e.ch)})
		}
	}
}

// Get returns the values stored under exactly token, or nil if token
// was never inserted. The returned slice is a copy.
func (t *Trie[V]) Get(token string) []V {
	n := t.findNode(token)
	if n == nil || !n.terminal {
		return nil
	}
	out := make([]V, len(n.values))
	copy(out, n.values)
	return out
}

// Contains reports whether token was inserted at least once.
func (t *Trie[V]) Contains(token string) bool {
	n := t.findNode(token)
	return n != nil && n.terminal
}

// Len returns the total number of stored values (one per Insert call).
func (t *Trie[V]) Len() int {
	return t.records
}

// TokenCount returns the number of distinct inserted tokens.
func (t *Trie[V]) TokenCount() int {
	return t.tokens
}

// Stats returns size counters for the trie.
func (t *Trie[V]) Stats() Stats {
	return Stats{
		Records:  t.records,
		Tokens:   t.tokens,
		Nodes:    t.nodes,
		MaxDepth: t.maxDepth,
	}
}

// Alphabet returns the alphabet the trie validates tokens against.
func (t *Trie[V]) Alphabet() *Alphabet {
	return t.alphabet
}

// findNode descends from the root consuming each character of path.
// Returns nil if the path leaves the trie.
func (t *Trie[V]) findNode(path string) *node[V] {
	n := t.root
	for i := 0; i < len(path); i++ {
		n = n.findChild(path[i])
		if n == nil {
			return nil
		}
	}
	return n
}

// findChild returns the child reached by c, or nil.
func (n *node[V]) findChild(c byte) *node[V] {
	i := sort.Search(len(n.edges), func(i int) bool { return n.edges[i].ch >= c })
	if i < len(n.edges) && n.edges[i].ch == c {
		return n.edges[i].child
	}
	return nil
}

// ensureChild returns the child reached by c, allocating it if absent.
// The edge slice stays sorted by character.
func (n *node[V]) ensureChild(c byte) (*node[V], bool) {
	i := sort.Search(len(n.edges), func(i int) bool { return n.edges[i].ch >= c })
	if i < len(n.edges) && n.edges[i].ch == c {
		return n.edges[i].child, false
	}
	child := &node[V]{}
	n.edges = append(n.edges, edge[V]{})
	copy(n.edges[i+1:], n.edges[i:])
	n.edges[i] = edge[V]{ch: c, child: child}
	return child, true
}
