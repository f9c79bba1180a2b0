package active

import (
	"fmt"
	"reflect"
)

// ExprKind identifies the operation an expression node performs
type ExprKind string

const (
	KindConstant    ExprKind = "constant"
	KindParameter   ExprKind = "parameter"
	KindBinary      ExprKind = "binary"
	KindUnary       ExprKind = "unary"
	KindConditional ExprKind = "conditional"
	KindTypeAssert  ExprKind = "typeAssert"
	KindMember      ExprKind = "member"
	KindIndex       ExprKind = "index"
	KindCall        ExprKind = "call"
	KindInvoke      ExprKind = "invoke"
	KindLambda      ExprKind = "lambda"
	KindNew         ExprKind = "new"
	KindNewArray    ExprKind = "newArray"
	KindMemberInit  ExprKind = "memberInit"
	KindQuote       ExprKind = "quote"
)

// Expr is a pre-parsed expression tree node. Trees are plain data: the engine
// never mutates them, and two structurally identical trees built from
// different instances denote the same computation (see canonical.go).
type Expr interface {
	Kind() ExprKind
	// Type is the static result type of the expression
	Type() reflect.Type
}

// BinaryOp tags a binary operator
type BinaryOp string

const (
	OpAdd            BinaryOp = "+"
	OpSubtract       BinaryOp = "-"
	OpMultiply       BinaryOp = "*"
	OpDivide         BinaryOp = "/"
	OpModulo         BinaryOp = "%"
	OpEqual          BinaryOp = "=="
	OpNotEqual       BinaryOp = "!="
	OpLess           BinaryOp = "<"
	OpLessOrEqual    BinaryOp = "<="
	OpGreater        BinaryOp = ">"
	OpGreaterOrEqual BinaryOp = ">="
	OpAnd            BinaryOp = "&"
	OpOr             BinaryOp = "|"
	OpXor            BinaryOp = "^"
	OpShiftLeft      BinaryOp = "<<"
	OpShiftRight     BinaryOp = ">>"
	OpAndAlso        BinaryOp = "&&"
	OpOrElse         BinaryOp = "||"
	OpCoalesce       BinaryOp = "??"
)

// UnaryOp tags a unary operator
type UnaryOp string

const (
	OpNegate     UnaryOp = "-x"
	OpUnaryPlus  UnaryOp = "+x"
	OpNot        UnaryOp = "!x"
	OpComplement UnaryOp = "^x"
)

// ConstantExpr holds a literal value
type ConstantExpr struct {
	Of    reflect.Type
	Value any
}

func (e *ConstantExpr) Kind() ExprKind     { return KindConstant }
func (e *ConstantExpr) Type() reflect.Type { return e.Of }

// ParameterExpr is a lambda parameter, identified canonically by lexical
// position rather than by instance
type ParameterExpr struct {
	Of   reflect.Type
	Name string
}

func (e *ParameterExpr) Kind() ExprKind     { return KindParameter }
func (e *ParameterExpr) Type() reflect.Type { return e.Of }

// LambdaExpr binds parameters over a body expression
type LambdaExpr struct {
	Params []*ParameterExpr
	Body   Expr
}

func (e *LambdaExpr) Kind() ExprKind     { return KindLambda }
func (e *LambdaExpr) Type() reflect.Type { return e.Body.Type() }

// BinaryExpr applies a binary operator. Conversion is only consulted by the
// coalescing operator: a func value compiled once per node and applied to a
// non-nil left value before it is produced.
type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expr
	Of          reflect.Type
	Conversion  any
}

func (e *BinaryExpr) Kind() ExprKind     { return KindBinary }
func (e *BinaryExpr) Type() reflect.Type { return e.Of }

// UnaryExpr applies a unary operator
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
	Of      reflect.Type
}

func (e *UnaryExpr) Kind() ExprKind     { return KindUnary }
func (e *UnaryExpr) Type() reflect.Type { return e.Of }

// ConditionalExpr is test ? then : else
type ConditionalExpr struct {
	Test, Then, Else Expr
}

func (e *ConditionalExpr) Kind() ExprKind     { return KindConditional }
func (e *ConditionalExpr) Type() reflect.Type { return e.Then.Type() }

// TypeAssertOp selects between the boolean check and the value form
type TypeAssertOp string

const (
	// OpIs yields whether the operand's runtime value is assignable to Target
	OpIs TypeAssertOp = "is"
	// OpAs yields the operand's value when assignable to Target, else Target's default
	OpAs TypeAssertOp = "as"
)

// TypeAssertExpr checks or narrows the operand's runtime type
type TypeAssertExpr struct {
	Op      TypeAssertOp
	Operand Expr
	Target  reflect.Type
}

func (e *TypeAssertExpr) Kind() ExprKind { return KindTypeAssert }
func (e *TypeAssertExpr) Type() reflect.Type {
	if e.Op == OpIs {
		return reflect.TypeOf(true)
	}
	return e.Target
}

// MemberExpr reads a named member of the target's current value: an exported
// struct field, a niladic getter method, or a property of an Observable bag.
// Getter, when non-nil, overrides resolution entirely; with a nil Target it
// models a static member.
type MemberExpr struct {
	Target Expr
	Name   string
	Of     reflect.Type
	Getter func(target any) (any, error)
}

func (e *MemberExpr) Kind() ExprKind     { return KindMember }
func (e *MemberExpr) Type() reflect.Type { return e.Of }

// IndexExpr reads target[args...]: integer indexing for slices/arrays and
// ObservableList, key indexing for maps and ObservableMap
type IndexExpr struct {
	Target Expr
	Args   []Expr
	Of     reflect.Type
}

func (e *IndexExpr) Kind() ExprKind     { return KindIndex }
func (e *IndexExpr) Type() reflect.Type { return e.Of }

// CallExpr invokes the named method on the target's current value
type CallExpr struct {
	Target Expr
	Method string
	Args   []Expr
	Of     reflect.Type
}

func (e *CallExpr) Kind() ExprKind     { return KindCall }
func (e *CallExpr) Type() reflect.Type { return e.Of }

// InvokeExpr applies a function-valued target, or inlines a lambda constant,
// over the argument expressions
type InvokeExpr struct {
	Target Expr
	Args   []Expr
	Of     reflect.Type
}

func (e *InvokeExpr) Kind() ExprKind     { return KindInvoke }
func (e *InvokeExpr) Type() reflect.Type { return e.Of }

// NewExpr constructs a value. Ctor, when non-nil, must be a func value whose
// results are (T) or (T, error); when nil the zero value of Of is produced.
type NewExpr struct {
	Of   reflect.Type
	Ctor any
	Args []Expr
}

func (e *NewExpr) Kind() ExprKind     { return KindNew }
func (e *NewExpr) Type() reflect.Type { return e.Of }

// NewArrayExpr builds a slice of Elem from the element expressions
type NewArrayExpr struct {
	Elem  reflect.Type
	Elems []Expr
}

func (e *NewArrayExpr) Kind() ExprKind     { return KindNewArray }
func (e *NewArrayExpr) Type() reflect.Type { return reflect.SliceOf(e.Elem) }

// MemberAssignment pairs a member name with its value expression
type MemberAssignment struct {
	Name  string
	Value Expr
}

// MemberInitExpr layers member assignments atop a construction. The
// constructed type must be settable by reference (pointer to struct, or an
// Observable bag); plain value types are rejected at node construction.
type MemberInitExpr struct {
	New   *NewExpr
	Inits []MemberAssignment
}

func (e *MemberInitExpr) Kind() ExprKind     { return KindMemberInit }
func (e *MemberInitExpr) Type() reflect.Type { return e.New.Of }

// QuoteExpr wraps a sub-tree used as data; the engine treats it as a constant
// holding the tree rather than interpreting it
type QuoteExpr struct {
	Expr Expr
}

func (e *QuoteExpr) Kind() ExprKind     { return KindQuote }
func (e *QuoteExpr) Type() reflect.Type { return reflect.TypeOf((*Expr)(nil)).Elem() }

// Constructor helpers. These keep test and consumer code terse; they do no
// validation beyond what the dispatcher enforces.

// Constant wraps a literal value, inferring its type
func Constant(v any) *ConstantExpr {
	return &ConstantExpr{Of: reflect.TypeOf(v), Value: v}
}

// ConstantOf wraps a literal value with an explicit static type
func ConstantOf(v any, t reflect.Type) *ConstantExpr {
	return &ConstantExpr{Of: t, Value: v}
}

// Param declares a lambda parameter
func Param(name string, t reflect.Type) *ParameterExpr {
	return &ParameterExpr{Of: t, Name: name}
}

// Lambda binds parameters over a body
func Lambda(body Expr, params ...*ParameterExpr) *LambdaExpr {
	return &LambdaExpr{Params: params, Body: body}
}

// Binary builds a binary expression, inferring the result type from the
// operator: comparisons and logic yield bool, everything else the left
// operand's static type
func Binary(op BinaryOp, left, right Expr) *BinaryExpr {
	of := left.Type()
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual, OpAndAlso, OpOrElse:
		of = reflect.TypeOf(true)
	}
	return &BinaryExpr{Op: op, Left: left, Right: right, Of: of}
}

// Unary builds a unary expression over an operand
func Unary(op UnaryOp, operand Expr) *UnaryExpr {
	of := operand.Type()
	if op == OpNot {
		of = reflect.TypeOf(true)
	}
	return &UnaryExpr{Op: op, Operand: operand, Of: of}
}

// Conditional builds test ? then : else
func Conditional(test, then, els Expr) *ConditionalExpr {
	return &ConditionalExpr{Test: test, Then: then, Else: els}
}

// Member reads a named member of target
func Member(target Expr, name string, of reflect.Type) *MemberExpr {
	return &MemberExpr{Target: target, Name: name, Of: of}
}

// Index reads target[args...]
func Index(target Expr, of reflect.Type, args ...Expr) *IndexExpr {
	return &IndexExpr{Target: target, Args: args, Of: of}
}

// Call invokes a named method on target
func Call(target Expr, method string, of reflect.Type, args ...Expr) *CallExpr {
	return &CallExpr{Target: target, Method: method, Args: args, Of: of}
}

// Invoke applies a function-valued target
func Invoke(target Expr, of reflect.Type, args ...Expr) *InvokeExpr {
	return &InvokeExpr{Target: target, Args: args, Of: of}
}

// New constructs a value through ctor (a func value), or the zero value of t
// when ctor is nil
func New(t reflect.Type, ctor any, args ...Expr) *NewExpr {
	return &NewExpr{Of: t, Ctor: ctor, Args: args}
}

// NewArray builds a slice of elem
func NewArray(elem reflect.Type, elems ...Expr) *NewArrayExpr {
	return &NewArrayExpr{Elem: elem, Elems: elems}
}

// MemberInit layers assignments atop a construction
func MemberInit(n *NewExpr, inits ...MemberAssignment) *MemberInitExpr {
	return &MemberInitExpr{New: n, Inits: inits}
}

// Quote wraps a sub-tree as data
func Quote(e Expr) *QuoteExpr {
	return &QuoteExpr{Expr: e}
}

// exprChildren returns the direct sub-expressions in fixed operand order
func exprChildren(e Expr) []Expr {
	switch x := e.(type) {
	case *BinaryExpr:
		return []Expr{x.Left, x.Right}
	case *UnaryExpr:
		return []Expr{x.Operand}
	case *ConditionalExpr:
		return []Expr{x.Test, x.Then, x.Else}
	case *TypeAssertExpr:
		return []Expr{x.Operand}
	case *MemberExpr:
		if x.Target == nil {
			return nil
		}
		return []Expr{x.Target}
	case *IndexExpr:
		return append([]Expr{x.Target}, x.Args...)
	case *CallExpr:
		return append([]Expr{x.Target}, x.Args...)
	case *InvokeExpr:
		return append([]Expr{x.Target}, x.Args...)
	case *LambdaExpr:
		return []Expr{x.Body}
	case *NewExpr:
		return x.Args
	case *NewArrayExpr:
		return x.Elems
	case *MemberInitExpr:
		children := []Expr{x.New}
		for _, init := range x.Inits {
			children = append(children, init.Value)
		}
		return children
	}
	return nil
}

// ExprString renders an approximate source form of an expression
func ExprString(e Expr) string {
	switch x := e.(type) {
	case *ConstantExpr:
		return fmt.Sprintf("%v", x.Value)
	case *ParameterExpr:
		return x.Name
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", ExprString(x.Left), x.Op, ExprString(x.Right))
	case *UnaryExpr:
		return fmt.Sprintf("%s(%s)", string(x.Op)[:len(x.Op)-1], ExprString(x.Operand))
	case *ConditionalExpr:
		return fmt.Sprintf("(%s ? %s : %s)", ExprString(x.Test), ExprString(x.Then), ExprString(x.Else))
	case *TypeAssertExpr:
		return fmt.Sprintf("(%s %s %s)", ExprString(x.Operand), x.Op, x.Target)
	case *MemberExpr:
		if x.Target == nil {
			return x.Name
		}
		return fmt.Sprintf("%s.%s", ExprString(x.Target), x.Name)
	case *IndexExpr:
		return fmt.Sprintf("%s[%s]", ExprString(x.Target), exprListString(x.Args))
	case *CallExpr:
		return fmt.Sprintf("%s.%s(%s)", ExprString(x.Target), x.Method, exprListString(x.Args))
	case *InvokeExpr:
		return fmt.Sprintf("%s(%s)", ExprString(x.Target), exprListString(x.Args))
	case *LambdaExpr:
		params := ""
		for i, p := range x.Params {
			if i > 0 {
				params += ", "
			}
			params += p.Name
		}
		return fmt.Sprintf("(%s) => %s", params, ExprString(x.Body))
	case *NewExpr:
		return fmt.Sprintf("new %s(%s)", x.Of, exprListString(x.Args))
	case *NewArrayExpr:
		return fmt.Sprintf("[]%s{%s}", x.Elem, exprListString(x.Elems))
	case *MemberInitExpr:
		s := ExprString(x.New) + "{"
		for i, init := range x.Inits {
			if i > 0 {
				s += ", "
			}
			s += init.Name + ": " + ExprString(init.Value)
		}
		return s + "}"
	case *QuoteExpr:
		return fmt.Sprintf("quote(%s)", ExprString(x.Expr))
	}
	return string(e.Kind())
}

func exprListString(exprs []Expr) string {
	s := ""
	for i, e := range exprs {
		if i > 0 {
			s += ", "
		}
		s += ExprString(e)
	}
	return s
}
