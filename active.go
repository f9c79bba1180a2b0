package active

import (
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ActiveExpression is the typed facade over a live node. It binds a lambda's
// parameters to argument values, forwards the node's changes, and narrows
// the untyped value to T, falling back to T's zero value when the runtime
// value does not match.
type ActiveExpression[T any] struct {
	node *Node
	args []any
	key  wrapperKey
}

// Observe binds a niladic lambda into a live typed value
func Observe[T any](lambda *LambdaExpr, o *Options) (*ActiveExpression[T], error) {
	return observe[T](lambda, o, nil)
}

// Observe1 binds a one-parameter lambda over one argument value
func Observe1[T any](lambda *LambdaExpr, o *Options, arg any) (*ActiveExpression[T], error) {
	return observe[T](lambda, o, []any{arg})
}

// Observe2 binds a two-parameter lambda over two argument values
func Observe2[T any](lambda *LambdaExpr, o *Options, arg1, arg2 any) (*ActiveExpression[T], error) {
	return observe[T](lambda, o, []any{arg1, arg2})
}

// Observe3 binds a three-parameter lambda over three argument values
func Observe3[T any](lambda *LambdaExpr, o *Options, arg1, arg2, arg3 any) (*ActiveExpression[T], error) {
	return observe[T](lambda, o, []any{arg1, arg2, arg3})
}

// Wrappers are deduplicated separately from nodes, keyed by the shared
// underlying node, the facade type, and the bound argument list. Two
// bindings may canonicalize to the same node while carrying different
// arguments; they must keep distinct wrappers. Each wrapper holds exactly
// one node handle; repeated Observe calls bump the wrapper's own refcount.
type wrapperKey struct {
	node *Node
	t    reflect.Type
	args string
}

// argsFingerprint renders the bound argument list with the same value and
// reference identity rules the canonical walk uses for constants
func argsFingerprint(args []any) string {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(constantFingerprint(a))
		b.WriteByte('|')
	}
	return b.String()
}

type wrapperRef struct {
	wrapper any
	refs    int
}

var wrappers = struct {
	mu      sync.Mutex
	entries map[wrapperKey]*wrapperRef
}{entries: make(map[wrapperKey]*wrapperRef)}

func observe[T any](lambda *LambdaExpr, o *Options, args []any) (*ActiveExpression[T], error) {
	if len(lambda.Params) != len(args) {
		return nil, &UnsupportedExprError{
			Kind:   KindLambda,
			Detail: "argument count does not match lambda parameters",
		}
	}
	bind := make(map[*ParameterExpr]Expr, len(args))
	for i, p := range lambda.Params {
		bind[p] = ConstantOf(args[i], p.Of)
	}
	node, err := Create(substituteParams(lambda.Body, bind), o, false)
	if err != nil {
		return nil, err
	}

	key := wrapperKey{node: node, t: reflect.TypeOf((*T)(nil)), args: argsFingerprint(args)}
	wrappers.mu.Lock()
	defer wrappers.mu.Unlock()
	if ref, ok := wrappers.entries[key]; ok {
		ref.refs++
		// the wrapper already holds its node handle; balance this Create
		node.Dispose()
		return ref.wrapper.(*ActiveExpression[T]), nil
	}
	a := &ActiveExpression[T]{node: node, args: args, key: key}
	wrappers.entries[key] = &wrapperRef{wrapper: a, refs: 1}
	return a, nil
}

// Value returns the current value narrowed to T; a fault or a mismatched
// runtime value yields T's zero value
func (a *ActiveExpression[T]) Value() T {
	v, _ := a.node.read()
	return narrow[T](v)
}

// Fault returns the current fault
func (a *ActiveExpression[T]) Fault() error {
	return a.node.Fault()
}

// Args returns the argument values the lambda was bound over
func (a *ActiveExpression[T]) Args() []any {
	return a.args
}

// Node returns the shared underlying node
func (a *ActiveExpression[T]) Node() *Node {
	return a.node
}

// TypedChange is a node change narrowed to the facade type
type TypedChange[T any] struct {
	OldValue T
	OldFault error
	NewValue T
	NewFault error
}

// Subscribe registers a typed observer; the returned token removes it
func (a *ActiveExpression[T]) Subscribe(fn func(TypedChange[T])) uuid.UUID {
	return a.node.Subscribe(func(c Change) {
		fn(TypedChange[T]{
			OldValue: narrow[T](c.OldValue),
			OldFault: c.OldFault,
			NewValue: narrow[T](c.NewValue),
			NewFault: c.NewFault,
		})
	})
}

// Unsubscribe removes a previously registered observer
func (a *ActiveExpression[T]) Unsubscribe(id uuid.UUID) {
	a.node.Unsubscribe(id)
}

// Dispose releases one handle on the wrapper; the last release disposes the
// underlying node
func (a *ActiveExpression[T]) Dispose() error {
	key := a.key
	wrappers.mu.Lock()
	if ref, ok := wrappers.entries[key]; ok {
		ref.refs--
		if ref.refs > 0 {
			wrappers.mu.Unlock()
			return nil
		}
		delete(wrappers.entries, key)
	}
	wrappers.mu.Unlock()
	return a.node.Dispose()
}

func (a *ActiveExpression[T]) String() string {
	return a.node.String()
}

func narrow[T any](v any) T {
	if t, ok := v.(T); ok {
		return t
	}
	var zero T
	return zero
}
