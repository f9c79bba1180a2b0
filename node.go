package active

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Change carries a node's previous and new value/fault pair to observers
type Change struct {
	OldValue any
	OldFault error
	NewValue any
	NewFault error
}

// Observer receives node changes
type Observer func(Change)

// nodeImpl is the kind-specific behavior behind a node
type nodeImpl interface {
	// init builds children recursively and subscribes to them, leaving the
	// node ready to evaluate. Called at most once; on error it must have
	// torn down any partially built children.
	init(n *Node) error
	// evaluate recomputes the node's value/fault from its children and
	// publishes the result. Always runs under the node's evaluation lock.
	evaluate(n *Node)
	// teardown unsubscribes from and disposes children
	teardown(n *Node) error
	// children lists child nodes in operand order, for rendering
	children() []*Node
}

// Node is one live operation in a computation tree. Nodes are created only
// through the dispatcher and shared through the cache; Value and Fault are
// mutually exclusive at any observable instant.
//
// A node is deferred until its first read, which performs exactly one
// evaluation; from then on it is live and push-updated by child
// notifications only.
type Node struct {
	kind    ExprKind
	expr    Expr
	of      reflect.Type
	options *Options
	impl    nodeImpl

	// deferredCreate records whether this node was built for deferred
	// evaluation; children inherit it so a short-circuited subtree stays
	// unevaluated all the way down
	deferredCreate bool

	// evalMu serializes evaluation and the deferred-to-live transition
	evalMu sync.Mutex
	live   atomic.Bool
	// suppress silences change notification during the forced first
	// evaluation: going live is not a dependency change. Written and read
	// only on evaluation paths under evalMu.
	suppress bool

	// mu guards the value/fault pair
	mu    sync.Mutex
	val   any
	fault error

	observers handlerSet[Change]

	initOnce sync.Once
	initErr  error

	entry *cacheEntry
}

// Kind returns the node's operation tag
func (n *Node) Kind() ExprKind {
	return n.kind
}

// Type returns the node's static result type
func (n *Node) Type() reflect.Type {
	return n.of
}

// Options returns the policy bag the node was built under
func (n *Node) Options() *Options {
	return n.options
}

// Value returns the node's current value, forcing a deferred node live
func (n *Node) Value() any {
	v, _ := n.read()
	return v
}

// Fault returns the node's current fault, forcing a deferred node live
func (n *Node) Fault() error {
	_, f := n.read()
	return f
}

// read forces a deferred node live with exactly one evaluation, then
// returns the current value/fault pair
func (n *Node) read() (any, error) {
	if n.live.Load() {
		return n.peek()
	}
	n.evalMu.Lock()
	if !n.live.Load() {
		n.suppress = true
		n.impl.evaluate(n)
		n.suppress = false
		n.live.Store(true)
	}
	n.evalMu.Unlock()
	return n.peek()
}

// peek returns the current pair without forcing evaluation
func (n *Node) peek() (any, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.val, n.fault
}

// isLive reports whether the node has evaluated at least once
func (n *Node) isLive() bool {
	return n.live.Load()
}

// reevaluate is the push-update path taken when a dependency changes.
// Deferred nodes stay untouched; their first read evaluates fresh.
func (n *Node) reevaluate() {
	if !n.live.Load() {
		return
	}
	n.evalMu.Lock()
	n.impl.evaluate(n)
	n.evalMu.Unlock()
}

// withEval runs fn under the evaluation lock if the node is live; handlers
// that push values directly (index fast paths, member-init patches) use it
// to stay serialized with ordinary evaluation
func (n *Node) withEval(fn func()) {
	if !n.live.Load() {
		return
	}
	n.evalMu.Lock()
	fn()
	n.evalMu.Unlock()
}

// publish installs a new value/fault pair and notifies observers when the
// pair actually changed. A fault resets the value to the result type's
// default; a non-fault value clears the fault.
func (n *Node) publish(v any, fault error) {
	if fault != nil {
		v = typeDefault(n.of)
	}

	n.mu.Lock()
	oldVal, oldFault := n.val, n.fault
	changed := !valuesEqual(oldVal, v) || !sameFault(oldFault, fault)
	if changed {
		n.val, n.fault = v, fault
	}
	n.mu.Unlock()

	if !changed {
		return
	}
	if fault != nil {
		for _, ext := range currentExtensions() {
			ext.OnNodeFault(n, fault)
		}
	}
	if n.suppress {
		return
	}
	n.observers.notify(Change{OldValue: oldVal, OldFault: oldFault, NewValue: v, NewFault: fault})
}

func sameFault(a, b error) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

// Subscribe registers an observer; the returned token removes it
func (n *Node) Subscribe(fn Observer) uuid.UUID {
	return n.observers.add(func(c Change) { fn(c) })
}

// Unsubscribe removes a previously registered observer
func (n *Node) Unsubscribe(id uuid.UUID) {
	n.observers.remove(id)
}

// Dispose releases one handle on the node. When the last handle is released
// the node leaves the cache, unsubscribes from its children, disposes them,
// and disposes its own last value if policy requires.
func (n *Node) Dispose() error {
	if !nodes.release(n) {
		return nil
	}

	var result error
	if err := n.impl.teardown(n); err != nil {
		result = multierror.Append(result, err)
	}

	for _, ext := range currentExtensions() {
		ext.OnNodeDisposed(n)
	}
	return result
}

// buildChildren creates one child per expression, subscribing each to the
// parent's reevaluation; a failure tears down the children built so far
func buildChildren(n *Node, exprs []Expr) ([]*Node, []uuid.UUID, error) {
	children := make([]*Node, 0, len(exprs))
	tokens := make([]uuid.UUID, 0, len(exprs))
	for _, e := range exprs {
		child, err := Create(e, n.options, n.deferredCreate)
		if err != nil {
			teardownChildren(children, tokens)
			return nil, nil, err
		}
		children = append(children, child)
		tokens = append(tokens, child.Subscribe(func(Change) { n.reevaluate() }))
	}
	return children, tokens, nil
}

// readChildren collects child values in operand order; the first fault wins
func readChildren(children []*Node) ([]any, error) {
	vals := make([]any, len(children))
	for i, child := range children {
		v, f := child.read()
		if f != nil {
			return nil, f
		}
		vals[i] = v
	}
	return vals, nil
}

// teardownChildren unsubscribes from and releases a node's children,
// aggregating failures
func teardownChildren(children []*Node, tokens []uuid.UUID) error {
	var result error
	for i, child := range children {
		if child == nil {
			continue
		}
		if i < len(tokens) {
			child.Unsubscribe(tokens[i])
		}
		if err := child.Dispose(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
