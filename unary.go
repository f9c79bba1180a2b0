package active

import (
	"github.com/google/uuid"
)

type unaryNode struct {
	expr    *UnaryExpr
	operand *Node
	tok     uuid.UUID
}

func (u *unaryNode) init(n *Node) error {
	operand, err := Create(u.expr.Operand, n.options, n.deferredCreate)
	if err != nil {
		return err
	}
	u.operand = operand
	u.tok = operand.Subscribe(func(Change) { n.reevaluate() })
	return nil
}

func (u *unaryNode) evaluate(n *Node) {
	v, f := u.operand.read()
	if f != nil {
		n.publish(nil, f)
		return
	}
	fn, err := dispatch.unaryFor(u.expr.Op, operandType(v, u.expr.Operand), n.of)
	if err != nil {
		n.publish(nil, err)
		return
	}
	n.publish(fn(v))
}

func (u *unaryNode) teardown(n *Node) error {
	return teardownChildren([]*Node{u.operand}, []uuid.UUID{u.tok})
}

func (u *unaryNode) children() []*Node {
	return []*Node{u.operand}
}
