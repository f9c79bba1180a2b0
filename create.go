package active

import (
	"errors"
	"sync"
)

// Create is the single recursive entry point for building live nodes: every
// node type builds its children through it. Identical computations built
// under the same Options share one node; each successful Create call is one
// handle that must be balanced by Dispose.
//
// The deferred flag postpones the first evaluation until the first read of
// Value or Fault; construction itself is always eager.
func Create(e Expr, o *Options, deferred bool) (*Node, error) {
	o = normalizeOptions(o)
	o.freeze()

	e = redirectGetterCall(e)

	impl, err := implFor(e)
	if err != nil {
		return nil, err
	}

	n, created := nodes.acquire(e, o, func() *Node {
		return &Node{
			kind:           e.Kind(),
			expr:           e,
			of:             e.Type(),
			options:        o,
			impl:           impl,
			deferredCreate: deferred,
		}
	})
	if created {
		for _, ext := range currentExtensions() {
			ext.OnNodeCreated(n)
		}
	}

	// One-time initialization, regardless of how many concurrent callers
	// raced to acquire the node. A failure is cached and returned to every
	// later caller; it is never retried.
	n.initOnce.Do(func() {
		if err := n.impl.init(n); err != nil {
			var ie *InitError
			if !errors.As(err, &ie) {
				err = newInitError(e, err, "building children")
			}
			n.initErr = err
			nodes.markFailed(n)
		}
		for _, ext := range currentExtensions() {
			ext.OnNodeInitialized(n, n.initErr)
		}
	})
	if n.initErr != nil {
		nodes.release(n)
		return nil, n.initErr
	}
	if !deferred {
		// Bottom-up first evaluation; a no-op once the node is live, which
		// also upgrades a node first built deferred and now shared eagerly
		n.read()
	}
	return n, nil
}

// implFor maps a raw tree node to its concrete node behavior
func implFor(e Expr) (nodeImpl, error) {
	switch x := e.(type) {
	case *ConstantExpr:
		return &constantNode{value: x.Value}, nil
	case *QuoteExpr:
		// A quoted sub-tree is data, not a computation
		return &constantNode{value: x.Expr}, nil
	case *BinaryExpr:
		return newBinaryNode(x)
	case *UnaryExpr:
		return &unaryNode{expr: x}, nil
	case *ConditionalExpr:
		return &conditionalNode{expr: x}, nil
	case *TypeAssertExpr:
		return &typeAssertNode{expr: x}, nil
	case *MemberExpr:
		return &memberNode{expr: x}, nil
	case *IndexExpr:
		return newIndexNode(x)
	case *CallExpr:
		return &callNode{expr: x}, nil
	case *InvokeExpr:
		return &invokeNode{expr: x}, nil
	case *NewExpr:
		return newConstructNode(x)
	case *NewArrayExpr:
		return &arrayNode{expr: x}, nil
	case *MemberInitExpr:
		return newMemberInitNode(x)
	case *ParameterExpr:
		return nil, &UnsupportedExprError{
			Kind:   KindParameter,
			Detail: "parameters must be substituted before node construction",
		}
	case *LambdaExpr:
		return nil, &UnsupportedExprError{
			Kind:   KindLambda,
			Detail: "lambdas are built through invocation or the typed wrapper",
		}
	}
	return nil, &UnsupportedExprError{Kind: e.Kind()}
}

// Getter-shaped calls are redirected to the member and index builders so
// their results get container-change subscription. The method-to-accessor
// decision is cached per (method, arity) shape.
var getterRedirects struct {
	mu    sync.Mutex
	cache map[redirectKey]redirectKind
}

type redirectKey struct {
	method string
	arity  int
}

type redirectKind uint8

const (
	redirectNone redirectKind = iota
	redirectMember
	redirectIndex
)

func redirectGetterCall(e Expr) Expr {
	call, ok := e.(*CallExpr)
	if !ok {
		return e
	}
	switch classifyRedirect(call.Method, len(call.Args)) {
	case redirectMember:
		return &MemberExpr{Target: call.Target, Name: call.Method, Of: call.Of}
	case redirectIndex:
		return &IndexExpr{Target: call.Target, Args: call.Args, Of: call.Of}
	}
	return e
}

func classifyRedirect(method string, arity int) redirectKind {
	key := redirectKey{method: method, arity: arity}
	getterRedirects.mu.Lock()
	defer getterRedirects.mu.Unlock()
	if getterRedirects.cache == nil {
		getterRedirects.cache = make(map[redirectKey]redirectKind)
	}
	if kind, ok := getterRedirects.cache[key]; ok {
		return kind
	}
	kind := redirectNone
	switch {
	case arity == 0 && len(method) > 3 && method[:3] == "Get":
		kind = redirectMember
	case arity == 1 && (method == "At" || method == "Value"):
		kind = redirectIndex
	}
	getterRedirects.cache[key] = kind
	return kind
}

// constantNode is the leaf: its value never changes and it has no children
type constantNode struct {
	value any
}

func (c *constantNode) init(n *Node) error {
	return nil
}

func (c *constantNode) evaluate(n *Node) {
	n.publish(c.value, nil)
}

func (c *constantNode) teardown(n *Node) error {
	return nil
}

func (c *constantNode) children() []*Node {
	return nil
}
