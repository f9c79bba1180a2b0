package active

import (
	"reflect"

	"github.com/google/uuid"
)

// constructNode produces a value from a constructor func over its argument
// children, or the result type's zero value when no constructor is given. It
// is the single owner of superseded-instance disposal: when the constructed
// type is registered for disposal, each replaced instance is disposed exactly
// once, here.
type constructNode struct {
	expr       *NewExpr
	ctor       invokerFn
	ctorParams []reflect.Type
	args       []*Node
	tokens     []uuid.UUID

	last    any
	haveRes bool
}

func newConstructNode(x *NewExpr) (nodeImpl, error) {
	c := &constructNode{expr: x}
	if x.Ctor == nil {
		if len(x.Args) > 0 {
			return nil, &UnsupportedExprError{
				Kind:   KindNew,
				Detail: "zero-value construction takes no arguments",
			}
		}
		return c, nil
	}
	ctor, err := compileFuncInvoker(x.Ctor)
	if err != nil {
		return nil, err
	}
	c.ctor = ctor
	c.ctorParams = ctorParamTypes(x.Ctor)
	return c, nil
}

func (c *constructNode) init(n *Node) error {
	args, tokens, err := buildChildren(n, c.expr.Args)
	if err != nil {
		return err
	}
	c.args, c.tokens = args, tokens
	return nil
}

func (c *constructNode) evaluate(n *Node) {
	vals, fault := readChildren(c.args)
	if fault != nil {
		c.finish(n, nil, fault)
		return
	}
	if c.ctor == nil {
		c.finish(n, typeDefault(c.expr.Of), nil)
		return
	}
	v, err := c.ctor(nil, vals)
	c.finish(n, v, err)
}

func (c *constructNode) finish(n *Node, v any, err error) {
	old, had := c.last, c.haveRes
	c.last, c.haveRes = v, err == nil
	n.publish(v, err)
	if had && !valuesEqual(old, v) && n.options.disposesConstructed(c.expr.Of, c.ctorParams) {
		disposeValue(n, n.options, old, "superseded")
	}
}

func (c *constructNode) teardown(n *Node) error {
	if c.haveRes && n.options.disposesConstructed(c.expr.Of, c.ctorParams) {
		disposeValue(n, n.options, c.last, "teardown")
	}
	return teardownChildren(c.args, c.tokens)
}

func (c *constructNode) children() []*Node {
	return c.args
}

// arrayNode builds a fresh slice of the element type from its children
type arrayNode struct {
	expr   *NewArrayExpr
	elems  []*Node
	tokens []uuid.UUID
}

func (a *arrayNode) init(n *Node) error {
	elems, tokens, err := buildChildren(n, a.expr.Elems)
	if err != nil {
		return err
	}
	a.elems, a.tokens = elems, tokens
	return nil
}

func (a *arrayNode) evaluate(n *Node) {
	vals, fault := readChildren(a.elems)
	if fault != nil {
		n.publish(nil, fault)
		return
	}
	out := reflect.MakeSlice(reflect.SliceOf(a.expr.Elem), len(vals), len(vals))
	for i, v := range vals {
		cv, err := convertBoxed(v, a.expr.Elem)
		if err != nil {
			n.publish(nil, err)
			return
		}
		out.Index(i).Set(cv)
	}
	n.publish(out.Interface(), nil)
}

func (a *arrayNode) teardown(n *Node) error {
	return teardownChildren(a.elems, a.tokens)
}

func (a *arrayNode) children() []*Node {
	return a.elems
}
