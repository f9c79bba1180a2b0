package active

import (
	"reflect"

	"github.com/google/uuid"
)

// binaryNode covers the compiled operators plus the three short-circuit
// specializations. Short-circuit operators build their right operand
// deferred: its subtree is never evaluated unless the left value demands it.
type binaryNode struct {
	expr        *BinaryExpr
	left, right *Node
	leftTok     uuid.UUID
	rightTok    uuid.UUID
	conversion  invokerFn
}

func newBinaryNode(x *BinaryExpr) (nodeImpl, error) {
	b := &binaryNode{expr: x}
	if x.Conversion != nil {
		if x.Op != OpCoalesce {
			return nil, &UnsupportedExprError{
				Kind:   KindBinary,
				Detail: "conversion closures only apply to the coalescing operator",
			}
		}
		conv, err := compileFuncInvoker(x.Conversion)
		if err != nil {
			return nil, err
		}
		b.conversion = conv
	}
	return b, nil
}

func isShortCircuit(op BinaryOp) bool {
	switch op {
	case OpAndAlso, OpOrElse, OpCoalesce:
		return true
	}
	return false
}

func (b *binaryNode) init(n *Node) error {
	left, err := Create(b.expr.Left, n.options, n.deferredCreate)
	if err != nil {
		return err
	}
	right, err := Create(b.expr.Right, n.options, n.deferredCreate || isShortCircuit(b.expr.Op))
	if err != nil {
		left.Dispose()
		return err
	}
	b.left, b.right = left, right
	b.leftTok = left.Subscribe(func(Change) { n.reevaluate() })
	b.rightTok = right.Subscribe(func(Change) { n.reevaluate() })
	return nil
}

func (b *binaryNode) evaluate(n *Node) {
	lv, lf := b.left.read()

	switch b.expr.Op {
	case OpAndAlso:
		if lf != nil {
			n.publish(nil, lf)
			return
		}
		if lv != true {
			n.publish(false, nil)
			return
		}
		n.publish(b.right.read())
		return
	case OpOrElse:
		if lf != nil {
			n.publish(nil, lf)
			return
		}
		if lv == true {
			n.publish(true, nil)
			return
		}
		n.publish(b.right.read())
		return
	case OpCoalesce:
		if lf != nil {
			n.publish(nil, lf)
			return
		}
		if !isNilValue(lv) {
			if b.conversion != nil {
				cv, err := b.conversion(nil, []any{lv})
				n.publish(cv, err)
				return
			}
			n.publish(lv, nil)
			return
		}
		n.publish(b.right.read())
		return
	}

	rv, rf := b.right.read()
	if lf != nil {
		n.publish(nil, lf)
		return
	}
	if rf != nil {
		n.publish(nil, rf)
		return
	}

	fn, err := dispatch.binaryFor(b.expr.Op, operandType(lv, b.expr.Left), operandType(rv, b.expr.Right), n.of)
	if err != nil {
		n.publish(nil, err)
		return
	}
	n.publish(fn(lv, rv))
}

func (b *binaryNode) teardown(n *Node) error {
	return teardownChildren(
		[]*Node{b.left, b.right},
		[]uuid.UUID{b.leftTok, b.rightTok},
	)
}

func (b *binaryNode) children() []*Node {
	return []*Node{b.left, b.right}
}

// operandType dispatches on the runtime type, falling back to the static
// type when the value is nil
func operandType(v any, e Expr) reflect.Type {
	if t := typeOfValue(v); t != nil {
		return t
	}
	return e.Type()
}

// isNilValue reports whether a boxed value is nil, including typed nils
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
