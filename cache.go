package active

import (
	"sync"
)

// The node cache is the dedup and lifecycle authority: one entry per
// canonical computation, refcounted. Acquire and the refcount-zero removal
// serialize through the same lock, so a node can never be handed out and
// torn down concurrently.

type cacheKey struct {
	kind    ExprKind
	hash    uint64
	options *Options
}

type cacheEntry struct {
	key    cacheKey
	expr   Expr
	node   *Node
	refs   int
	failed bool
}

type nodeCache struct {
	mu sync.Mutex
	// hash buckets; entries in one bucket are distinguished by structural
	// equality of their expressions
	entries map[cacheKey][]*cacheEntry
}

func newNodeCache() *nodeCache {
	return &nodeCache{entries: make(map[cacheKey][]*cacheEntry)}
}

// nodes is the process-wide cache, like the dispatch table
var nodes = newNodeCache()

// acquire returns the node for a canonical computation, bumping its
// refcount, or inserts a fresh one built by mk with refcount 1. mk only
// allocates; recursive child construction happens later, outside the lock,
// in the node's one-time initialization.
func (c *nodeCache) acquire(e Expr, o *Options, mk func() *Node) (n *Node, created bool) {
	key := cacheKey{kind: e.Kind(), hash: hashExpr(e), options: o}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.entries[key] {
		if equalExpr(entry.expr, e) {
			entry.refs++
			return entry.node, false
		}
	}

	node := mk()
	entry := &cacheEntry{key: key, expr: e, node: node, refs: 1}
	node.entry = entry
	c.entries[key] = append(c.entries[key], entry)
	return node, true
}

// release decrements a node's refcount; at zero the entry is removed and the
// node reported for teardown. Entries pinned by an initialization failure
// are never removed, so the cached failure keeps being returned.
func (c *nodeCache) release(n *Node) (tearDown bool) {
	entry := n.entry
	if entry == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.refs == 0 {
		return false
	}
	entry.refs--
	if entry.refs > 0 || entry.failed {
		return false
	}
	c.removeLocked(entry)
	return true
}

// markFailed pins an entry whose initialization failed
func (c *nodeCache) markFailed(n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n.entry != nil {
		n.entry.failed = true
	}
}

func (c *nodeCache) removeLocked(entry *cacheEntry) {
	bucket := c.entries[entry.key]
	for i, cand := range bucket {
		if cand == entry {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(c.entries, entry.key)
	} else {
		c.entries[entry.key] = bucket
	}
}

// refs reports a node's current refcount
func (c *nodeCache) refs(n *Node) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n.entry == nil {
		return 0
	}
	return n.entry.refs
}

// size reports how many live computations the cache holds
func (c *nodeCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, bucket := range c.entries {
		count += len(bucket)
	}
	return count
}
