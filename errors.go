package active

import (
	"fmt"
	"runtime/debug"
)

// Two error families exist. Construction errors (InitError,
// UnsupportedExprError, ErrValueTypeMemberInit) are programming errors: they
// abort node construction and are returned to the creator. Faults never
// leave a node as returned errors during evaluation; they live in the node's
// Fault slot and flow through the tree as values.

// InitError is a construction-time failure, cached on the node and returned
// to this and every later creator of the same computation
type InitError struct {
	Expr       Expr
	Cause      error
	Context    string
	StackTrace []byte
}

func (e *InitError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("initializing %s during %s: %v", ExprString(e.Expr), e.Context, e.Cause)
	}
	return fmt.Sprintf("initializing %s: %v", ExprString(e.Expr), e.Cause)
}

func (e *InitError) Unwrap() error {
	return e.Cause
}

func newInitError(expr Expr, cause error, context string) *InitError {
	return &InitError{
		Expr:       expr,
		Cause:      cause,
		Context:    context,
		StackTrace: debug.Stack(),
	}
}

// UnsupportedExprError reports a tree shape the dispatcher cannot build
type UnsupportedExprError struct {
	Kind   ExprKind
	Detail string
}

func (e *UnsupportedExprError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unsupported expression kind %q: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("unsupported expression kind %q", e.Kind)
}

// ErrValueTypeMemberInit rejects member initialization of value-type targets,
// where in-place patching is meaningless
var ErrValueTypeMemberInit = fmt.Errorf("member initialization requires a reference target")

// KeyNotFoundError is the synthesized fault raised when an indexed key
// disappears from its container
type KeyNotFoundError struct {
	Key any
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %v not found", e.Key)
}

// MemberNotFoundError reports a member the target's runtime type does not have
type MemberNotFoundError struct {
	TypeName string
	Name     string
}

func (e *MemberNotFoundError) Error() string {
	return fmt.Sprintf("type %s has no member %s", e.TypeName, e.Name)
}
