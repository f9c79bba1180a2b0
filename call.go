package active

import (
	"reflect"

	"github.com/google/uuid"
)

// callNode invokes a named method on its target's current value. The invoker
// closure comes from the compiled-dispatch cache, keyed by the target's
// runtime type, so a polymorphic target re-resolves as its value changes.
type callNode struct {
	expr      *CallExpr
	target    *Node
	targetTok uuid.UUID
	args      []*Node
	tokens    []uuid.UUID

	last    any
	haveRes bool
}

func (c *callNode) init(n *Node) error {
	target, err := Create(c.expr.Target, n.options, n.deferredCreate)
	if err != nil {
		return err
	}
	args, tokens, err := buildChildren(n, c.expr.Args)
	if err != nil {
		target.Dispose()
		return err
	}
	c.target, c.args, c.tokens = target, args, tokens
	c.targetTok = target.Subscribe(func(Change) { n.reevaluate() })
	return nil
}

func (c *callNode) evaluate(n *Node) {
	tv, tf := c.target.read()
	if tf != nil {
		c.finish(n, nil, tf)
		return
	}
	vals, fault := readChildren(c.args)
	if fault != nil {
		c.finish(n, nil, fault)
		return
	}
	if tv == nil {
		c.finish(n, nil, &MemberNotFoundError{TypeName: "<nil>", Name: c.expr.Method})
		return
	}

	fn, err := dispatch.invokerFor(reflect.TypeOf(tv), c.expr.Method, len(c.args))
	if err != nil {
		c.finish(n, nil, err)
		return
	}
	v, err := fn(tv, vals)
	c.finish(n, v, err)
}

func (c *callNode) finish(n *Node, v any, err error) {
	old, had := c.last, c.haveRes
	c.last, c.haveRes = v, err == nil
	n.publish(v, err)
	if had && !valuesEqual(old, v) && n.options.disposesMember(c.expr.Target.Type(), c.expr.Method) {
		disposeValue(n, n.options, old, "superseded")
	}
}

func (c *callNode) teardown(n *Node) error {
	if c.haveRes && n.options.disposesMember(c.expr.Target.Type(), c.expr.Method) {
		disposeValue(n, n.options, c.last, "teardown")
	}
	return teardownChildren(
		append([]*Node{c.target}, c.args...),
		append([]uuid.UUID{c.targetTok}, c.tokens...),
	)
}

func (c *callNode) children() []*Node {
	return append([]*Node{c.target}, c.args...)
}
