package active

import (
	"github.com/google/uuid"
)

// invokeNode applies its target over argument values. An inline lambda
// target is expanded: parameters are substituted with constant leaves
// holding the current argument values and the resulting body sub-tree is
// built through the dispatcher, then rebuilt from scratch whenever any
// argument changes, because the substituted tree's shape is what changed.
// Any other target must evaluate to a func value, reapplied when the func
// or an argument changes.
type invokeNode struct {
	expr   *InvokeExpr
	lambda *LambdaExpr

	target    *Node
	targetTok uuid.UUID
	args      []*Node
	tokens    []uuid.UUID

	body    *Node
	bodyTok uuid.UUID

	fn    invokerFn
	fnKey uint64
}

func (iv *invokeNode) init(n *Node) error {
	if lam, ok := iv.expr.Target.(*LambdaExpr); ok {
		if len(lam.Params) != len(iv.expr.Args) {
			return &UnsupportedExprError{
				Kind:   KindInvoke,
				Detail: "argument count does not match lambda parameters",
			}
		}
		iv.lambda = lam
	} else {
		target, err := Create(iv.expr.Target, n.options, n.deferredCreate)
		if err != nil {
			return err
		}
		iv.target = target
		iv.targetTok = target.Subscribe(func(Change) { n.reevaluate() })
	}

	args, tokens, err := buildChildren(n, iv.expr.Args)
	if err != nil {
		if iv.target != nil {
			iv.target.Unsubscribe(iv.targetTok)
			iv.target.Dispose()
		}
		return err
	}
	iv.args, iv.tokens = args, tokens
	return nil
}

func (iv *invokeNode) evaluate(n *Node) {
	vals, fault := readChildren(iv.args)
	if fault != nil {
		iv.dropBody()
		n.publish(nil, fault)
		return
	}

	if iv.lambda != nil {
		iv.rebuild(n, vals)
		return
	}

	tv, tf := iv.target.read()
	if tf != nil {
		n.publish(nil, tf)
		return
	}
	if key := funcPointer(tv); iv.fn == nil || key != iv.fnKey {
		fn, err := compileFuncInvoker(tv)
		if err != nil {
			n.publish(nil, err)
			return
		}
		iv.fn, iv.fnKey = fn, key
	}
	n.publish(iv.fn(nil, vals))
}

// rebuild replaces the substituted body sub-tree. The new tree is built
// before the old one is released so shared nodes survive the swap; body
// changes are forwarded as this node's own, no re-substitution needed.
func (iv *invokeNode) rebuild(n *Node, vals []any) {
	bind := make(map[*ParameterExpr]Expr, len(iv.lambda.Params))
	for i, p := range iv.lambda.Params {
		bind[p] = ConstantOf(vals[i], p.Of)
	}
	body, err := Create(substituteParams(iv.lambda.Body, bind), n.options, false)
	if err != nil {
		iv.dropBody()
		n.publish(nil, err)
		return
	}

	old, oldTok := iv.body, iv.bodyTok
	iv.body = body
	iv.bodyTok = body.Subscribe(func(c Change) {
		n.publish(c.NewValue, c.NewFault)
	})
	if old != nil {
		old.Unsubscribe(oldTok)
		old.Dispose()
	}
	n.publish(body.read())
}

func (iv *invokeNode) dropBody() {
	if iv.body == nil {
		return
	}
	iv.body.Unsubscribe(iv.bodyTok)
	iv.body.Dispose()
	iv.body = nil
}

func (iv *invokeNode) teardown(n *Node) error {
	iv.dropBody()
	children := iv.args
	tokens := iv.tokens
	if iv.target != nil {
		children = append([]*Node{iv.target}, children...)
		tokens = append([]uuid.UUID{iv.targetTok}, tokens...)
	}
	return teardownChildren(children, tokens)
}

func (iv *invokeNode) children() []*Node {
	var out []*Node
	if iv.target != nil {
		out = append(out, iv.target)
	}
	out = append(out, iv.args...)
	if iv.body != nil {
		out = append(out, iv.body)
	}
	return out
}

// substituteParams clones a tree with parameters replaced per the binding.
// Parameters bind by instance, so an inner lambda's shadowing parameters are
// untouched. Quoted sub-trees are data and pass through unchanged.
func substituteParams(e Expr, bind map[*ParameterExpr]Expr) Expr {
	switch x := e.(type) {
	case *ParameterExpr:
		if r, ok := bind[x]; ok {
			return r
		}
		return x
	case *BinaryExpr:
		return &BinaryExpr{
			Op:         x.Op,
			Left:       substituteParams(x.Left, bind),
			Right:      substituteParams(x.Right, bind),
			Of:         x.Of,
			Conversion: x.Conversion,
		}
	case *UnaryExpr:
		return &UnaryExpr{Op: x.Op, Operand: substituteParams(x.Operand, bind), Of: x.Of}
	case *ConditionalExpr:
		return &ConditionalExpr{
			Test: substituteParams(x.Test, bind),
			Then: substituteParams(x.Then, bind),
			Else: substituteParams(x.Else, bind),
		}
	case *TypeAssertExpr:
		return &TypeAssertExpr{Op: x.Op, Operand: substituteParams(x.Operand, bind), Target: x.Target}
	case *MemberExpr:
		if x.Target == nil {
			return x
		}
		return &MemberExpr{
			Target: substituteParams(x.Target, bind),
			Name:   x.Name,
			Of:     x.Of,
			Getter: x.Getter,
		}
	case *IndexExpr:
		return &IndexExpr{
			Target: substituteParams(x.Target, bind),
			Args:   substituteList(x.Args, bind),
			Of:     x.Of,
		}
	case *CallExpr:
		return &CallExpr{
			Target: substituteParams(x.Target, bind),
			Method: x.Method,
			Args:   substituteList(x.Args, bind),
			Of:     x.Of,
		}
	case *InvokeExpr:
		return &InvokeExpr{
			Target: substituteParams(x.Target, bind),
			Args:   substituteList(x.Args, bind),
			Of:     x.Of,
		}
	case *LambdaExpr:
		return &LambdaExpr{Params: x.Params, Body: substituteParams(x.Body, bind)}
	case *NewExpr:
		return &NewExpr{Of: x.Of, Ctor: x.Ctor, Args: substituteList(x.Args, bind)}
	case *NewArrayExpr:
		return &NewArrayExpr{Elem: x.Elem, Elems: substituteList(x.Elems, bind)}
	case *MemberInitExpr:
		inits := make([]MemberAssignment, len(x.Inits))
		for i, init := range x.Inits {
			inits[i] = MemberAssignment{Name: init.Name, Value: substituteParams(init.Value, bind)}
		}
		sub := substituteParams(x.New, bind).(*NewExpr)
		return &MemberInitExpr{New: sub, Inits: inits}
	}
	return e
}

func substituteList(exprs []Expr, bind map[*ParameterExpr]Expr) []Expr {
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		out[i] = substituteParams(e, bind)
	}
	return out
}
