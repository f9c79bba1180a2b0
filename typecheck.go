package active

import (
	"reflect"

	"github.com/google/uuid"
)

type typeAssertNode struct {
	expr    *TypeAssertExpr
	operand *Node
	tok     uuid.UUID
}

func (t *typeAssertNode) init(n *Node) error {
	operand, err := Create(t.expr.Operand, n.options, n.deferredCreate)
	if err != nil {
		return err
	}
	t.operand = operand
	t.tok = operand.Subscribe(func(Change) { n.reevaluate() })
	return nil
}

func (t *typeAssertNode) evaluate(n *Node) {
	v, f := t.operand.read()
	if f != nil {
		n.publish(nil, f)
		return
	}
	ok := matchesTarget(v, t.expr.Target)
	if t.expr.Op == OpIs {
		n.publish(ok, nil)
		return
	}
	if !ok {
		n.publish(typeDefault(t.expr.Target), nil)
		return
	}
	n.publish(v, nil)
}

func (t *typeAssertNode) teardown(n *Node) error {
	return teardownChildren([]*Node{t.operand}, []uuid.UUID{t.tok})
}

func (t *typeAssertNode) children() []*Node {
	return []*Node{t.operand}
}

// matchesTarget reports whether a boxed value's runtime type satisfies the
// target: assignability for concrete targets, implementation for interfaces.
// A nil value satisfies nothing.
func matchesTarget(v any, target reflect.Type) bool {
	if v == nil || target == nil {
		return false
	}
	rt := reflect.TypeOf(v)
	if target.Kind() == reflect.Interface {
		return rt.Implements(target)
	}
	return rt.AssignableTo(target)
}
