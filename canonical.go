package active

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Canonicalization makes two independently built trees compare as the same
// computation. Both walks visit children in fixed operand order and treat
// parameters by lexical (scope depth, position) pairs rather than by
// instance, so isomorphic trees built from separate ParameterExpr objects
// hash and compare equal.

type hashWalker struct {
	d      *xxhash.Digest
	scopes [][]*ParameterExpr
}

// hashExpr folds an expression tree into a structural hash
func hashExpr(e Expr) uint64 {
	w := &hashWalker{d: xxhash.New()}
	w.walk(e)
	return w.d.Sum64()
}

func (w *hashWalker) str(s string) {
	_, _ = w.d.WriteString(s)
	_, _ = w.d.Write([]byte{0})
}

func (w *hashWalker) num(n uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	_, _ = w.d.Write(buf[:])
}

func (w *hashWalker) typ(t reflect.Type) {
	if t == nil {
		w.str("<nil>")
		return
	}
	w.str(t.String())
}

func (w *hashWalker) walk(e Expr) {
	if e == nil {
		w.str("<nil-expr>")
		return
	}
	w.str(string(e.Kind()))
	switch x := e.(type) {
	case *ConstantExpr:
		w.typ(x.Of)
		w.str(constantFingerprint(x.Value))
	case *ParameterExpr:
		depth, pos, bound := w.lookup(x)
		if bound {
			w.num(uint64(depth))
			w.num(uint64(pos))
		} else {
			// Unbound parameters fall back to name+type identity
			w.str(x.Name)
		}
		w.typ(x.Of)
	case *BinaryExpr:
		w.str(string(x.Op))
		w.typ(x.Of)
		w.num(funcPointer(x.Conversion))
		w.walk(x.Left)
		w.walk(x.Right)
	case *UnaryExpr:
		w.str(string(x.Op))
		w.typ(x.Of)
		w.walk(x.Operand)
	case *ConditionalExpr:
		w.walk(x.Test)
		w.walk(x.Then)
		w.walk(x.Else)
	case *TypeAssertExpr:
		w.str(string(x.Op))
		w.typ(x.Target)
		w.walk(x.Operand)
	case *MemberExpr:
		w.str(x.Name)
		w.typ(x.Of)
		w.num(funcPointer(x.Getter))
		if x.Target != nil {
			w.walk(x.Target)
		}
	case *IndexExpr:
		w.typ(x.Of)
		w.walk(x.Target)
		for _, a := range x.Args {
			w.walk(a)
		}
	case *CallExpr:
		w.str(x.Method)
		w.typ(x.Of)
		w.walk(x.Target)
		for _, a := range x.Args {
			w.walk(a)
		}
	case *InvokeExpr:
		w.typ(x.Of)
		w.walk(x.Target)
		for _, a := range x.Args {
			w.walk(a)
		}
	case *LambdaExpr:
		w.num(uint64(len(x.Params)))
		for _, p := range x.Params {
			w.typ(p.Of)
		}
		w.scopes = append(w.scopes, x.Params)
		w.walk(x.Body)
		w.scopes = w.scopes[:len(w.scopes)-1]
	case *NewExpr:
		w.typ(x.Of)
		w.num(funcPointer(x.Ctor))
		for _, a := range x.Args {
			w.walk(a)
		}
	case *NewArrayExpr:
		w.typ(x.Elem)
		for _, el := range x.Elems {
			w.walk(el)
		}
	case *MemberInitExpr:
		w.walk(x.New)
		for _, init := range x.Inits {
			w.str(init.Name)
			w.walk(init.Value)
		}
	case *QuoteExpr:
		w.walk(x.Expr)
	}
}

// lookup resolves a parameter to (distance from innermost scope, position)
func (w *hashWalker) lookup(p *ParameterExpr) (depth, pos int, ok bool) {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		for j, cand := range w.scopes[i] {
			if cand == p {
				return len(w.scopes) - 1 - i, j, true
			}
		}
	}
	return 0, 0, false
}

// funcPointer returns a stable identity for a possibly-nil func value
func funcPointer(v any) uint64 {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return 0
	}
	return uint64(rv.Pointer())
}

// constantFingerprint renders a literal for hashing. Values of comparable
// kinds hash by formatted value; everything else by pointer identity, which
// matches the equality walk below.
func constantFingerprint(v any) string {
	if v == nil {
		return "<nil>"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Chan, reflect.Ptr, reflect.UnsafePointer:
		return fmt.Sprintf("%s@%x", rv.Type(), rv.Pointer())
	}
	return fmt.Sprintf("%T:%v", v, v)
}

type equalWalker struct {
	left, right [][]*ParameterExpr
}

// equalExpr reports whether two trees denote the same computation
func equalExpr(a, b Expr) bool {
	w := &equalWalker{}
	return w.walk(a, b)
}

func (w *equalWalker) walk(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *ConstantExpr:
		y := b.(*ConstantExpr)
		return x.Of == y.Of && constantEqual(x.Value, y.Value)
	case *ParameterExpr:
		y := b.(*ParameterExpr)
		if x.Of != y.Of {
			return false
		}
		ld, lp, lok := lookupIn(w.left, x)
		rd, rp, rok := lookupIn(w.right, y)
		if lok != rok {
			return false
		}
		if lok {
			return ld == rd && lp == rp
		}
		return x == y || x.Name == y.Name
	case *BinaryExpr:
		y := b.(*BinaryExpr)
		if x.Op != y.Op || x.Of != y.Of {
			return false
		}
		if funcPointer(x.Conversion) != funcPointer(y.Conversion) {
			return false
		}
		return w.walk(x.Left, y.Left) && w.walk(x.Right, y.Right)
	case *UnaryExpr:
		y := b.(*UnaryExpr)
		return x.Op == y.Op && x.Of == y.Of && w.walk(x.Operand, y.Operand)
	case *ConditionalExpr:
		y := b.(*ConditionalExpr)
		return w.walk(x.Test, y.Test) && w.walk(x.Then, y.Then) && w.walk(x.Else, y.Else)
	case *TypeAssertExpr:
		y := b.(*TypeAssertExpr)
		return x.Op == y.Op && x.Target == y.Target && w.walk(x.Operand, y.Operand)
	case *MemberExpr:
		y := b.(*MemberExpr)
		if x.Name != y.Name || x.Of != y.Of {
			return false
		}
		if funcPointer(x.Getter) != funcPointer(y.Getter) {
			return false
		}
		if (x.Target == nil) != (y.Target == nil) {
			return false
		}
		return x.Target == nil || w.walk(x.Target, y.Target)
	case *IndexExpr:
		y := b.(*IndexExpr)
		return x.Of == y.Of && w.walk(x.Target, y.Target) && w.walkAll(x.Args, y.Args)
	case *CallExpr:
		y := b.(*CallExpr)
		return x.Method == y.Method && x.Of == y.Of &&
			w.walk(x.Target, y.Target) && w.walkAll(x.Args, y.Args)
	case *InvokeExpr:
		y := b.(*InvokeExpr)
		return x.Of == y.Of && w.walk(x.Target, y.Target) && w.walkAll(x.Args, y.Args)
	case *LambdaExpr:
		y := b.(*LambdaExpr)
		if len(x.Params) != len(y.Params) {
			return false
		}
		for i := range x.Params {
			if x.Params[i].Of != y.Params[i].Of {
				return false
			}
		}
		w.left = append(w.left, x.Params)
		w.right = append(w.right, y.Params)
		eq := w.walk(x.Body, y.Body)
		w.left = w.left[:len(w.left)-1]
		w.right = w.right[:len(w.right)-1]
		return eq
	case *NewExpr:
		y := b.(*NewExpr)
		return x.Of == y.Of &&
			funcPointer(x.Ctor) == funcPointer(y.Ctor) &&
			w.walkAll(x.Args, y.Args)
	case *NewArrayExpr:
		y := b.(*NewArrayExpr)
		return x.Elem == y.Elem && w.walkAll(x.Elems, y.Elems)
	case *MemberInitExpr:
		y := b.(*MemberInitExpr)
		if len(x.Inits) != len(y.Inits) || !w.walk(x.New, y.New) {
			return false
		}
		for i := range x.Inits {
			if x.Inits[i].Name != y.Inits[i].Name || !w.walk(x.Inits[i].Value, y.Inits[i].Value) {
				return false
			}
		}
		return true
	case *QuoteExpr:
		y := b.(*QuoteExpr)
		return w.walk(x.Expr, y.Expr)
	}
	return false
}

func (w *equalWalker) walkAll(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !w.walk(a[i], b[i]) {
			return false
		}
	}
	return true
}

func lookupIn(scopes [][]*ParameterExpr, p *ParameterExpr) (depth, pos int, ok bool) {
	for i := len(scopes) - 1; i >= 0; i-- {
		for j, cand := range scopes[i] {
			if cand == p {
				return len(scopes) - 1 - i, j, true
			}
		}
	}
	return 0, 0, false
}

// constantEqual compares literals: comparable kinds by value, everything else
// by pointer identity
func constantEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Chan, reflect.Ptr, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	}
	if !ra.Type().Comparable() {
		return false
	}
	return a == b
}
