package active

import (
	"fmt"
	"reflect"
	"sync"
)

// The compiled-dispatch cache holds one closure per unique signature:
// (operator, operand types, result type) for operators, (target type, member
// name) for accessors, (target type, method, arity) for invokers. Closures
// are compiled once under the cache lock and reused by every node sharing
// the signature; entries are never removed.

type binaryFn func(left, right any) (any, error)
type unaryFn func(operand any) (any, error)

type binarySig struct {
	op     BinaryOp
	left   reflect.Type
	right  reflect.Type
	result reflect.Type
}

type unarySig struct {
	op      UnaryOp
	operand reflect.Type
	result  reflect.Type
}

type accessorSig struct {
	target reflect.Type
	name   string
}

type methodSig struct {
	target reflect.Type
	name   string
	arity  int
}

type dispatchTable struct {
	mu       sync.Mutex
	binary   map[binarySig]binaryFn
	unary    map[unarySig]unaryFn
	getters  map[accessorSig]getterFn
	setters  map[accessorSig]setterFn
	invokers map[methodSig]invokerFn
}

var dispatch = &dispatchTable{
	binary:   make(map[binarySig]binaryFn),
	unary:    make(map[unarySig]unaryFn),
	getters:  make(map[accessorSig]getterFn),
	setters:  make(map[accessorSig]setterFn),
	invokers: make(map[methodSig]invokerFn),
}

func (d *dispatchTable) binaryFor(op BinaryOp, left, right, result reflect.Type) (binaryFn, error) {
	sig := binarySig{op: op, left: left, right: right, result: result}
	d.mu.Lock()
	defer d.mu.Unlock()
	if fn, ok := d.binary[sig]; ok {
		return fn, nil
	}
	fn, err := compileBinary(sig)
	if err != nil {
		return nil, err
	}
	d.binary[sig] = fn
	return fn, nil
}

func (d *dispatchTable) unaryFor(op UnaryOp, operand, result reflect.Type) (unaryFn, error) {
	sig := unarySig{op: op, operand: operand, result: result}
	d.mu.Lock()
	defer d.mu.Unlock()
	if fn, ok := d.unary[sig]; ok {
		return fn, nil
	}
	fn, err := compileUnary(sig)
	if err != nil {
		return nil, err
	}
	d.unary[sig] = fn
	return fn, nil
}

func (d *dispatchTable) getterFor(target reflect.Type, name string) (getterFn, error) {
	sig := accessorSig{target: target, name: name}
	d.mu.Lock()
	defer d.mu.Unlock()
	if fn, ok := d.getters[sig]; ok {
		return fn, nil
	}
	fn, err := compileGetter(target, name)
	if err != nil {
		return nil, err
	}
	d.getters[sig] = fn
	return fn, nil
}

func (d *dispatchTable) setterFor(target reflect.Type, name string) (setterFn, error) {
	sig := accessorSig{target: target, name: name}
	d.mu.Lock()
	defer d.mu.Unlock()
	if fn, ok := d.setters[sig]; ok {
		return fn, nil
	}
	fn, err := compileSetter(target, name)
	if err != nil {
		return nil, err
	}
	d.setters[sig] = fn
	return fn, nil
}

func (d *dispatchTable) invokerFor(target reflect.Type, name string, arity int) (invokerFn, error) {
	sig := methodSig{target: target, name: name, arity: arity}
	d.mu.Lock()
	defer d.mu.Unlock()
	if fn, ok := d.invokers[sig]; ok {
		return fn, nil
	}
	fn, err := compileMethodInvoker(target, name, arity)
	if err != nil {
		return nil, err
	}
	d.invokers[sig] = fn
	return fn, nil
}

type kindClass uint8

const (
	classNone kindClass = iota
	classInt
	classUint
	classFloat
	classString
	classBool
	classComplex
)

func classify(t reflect.Type) kindClass {
	if t == nil {
		return classNone
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return classInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return classUint
	case reflect.Float32, reflect.Float64:
		return classFloat
	case reflect.String:
		return classString
	case reflect.Bool:
		return classBool
	case reflect.Complex64, reflect.Complex128:
		return classComplex
	}
	return classNone
}

// compileBinary builds the closure for one operator signature. Arithmetic
// and ordering work on the numeric and string classes; equality falls back
// to general boxed comparison; bitwise and shifts need integer classes.
func compileBinary(sig binarySig) (binaryFn, error) {
	switch sig.op {
	case OpEqual:
		return func(l, r any) (any, error) { return looseEqual(l, r), nil }, nil
	case OpNotEqual:
		return func(l, r any) (any, error) { return !looseEqual(l, r), nil }, nil
	}

	lc, rc := classify(sig.left), classify(sig.right)
	if lc == classNone || lc != rc {
		return nil, fmt.Errorf("operator %s undefined for (%s, %s)", sig.op, sig.left, sig.right)
	}

	result := sig.result
	box := func(v reflect.Value) (any, error) {
		if result == nil || v.Type() == result {
			return v.Interface(), nil
		}
		if !v.Type().ConvertibleTo(result) {
			return nil, fmt.Errorf("operator %s result %s not convertible to %s", sig.op, v.Type(), result)
		}
		return v.Convert(result).Interface(), nil
	}

	switch sig.op {
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo:
		return compileArithmetic(sig.op, lc, sig.left, box)
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return compileOrdering(sig.op, lc)
	case OpAnd, OpOr, OpXor, OpShiftLeft, OpShiftRight:
		return compileBitwise(sig.op, lc, sig.left, box)
	}
	return nil, fmt.Errorf("operator %s is not a compiled operator", sig.op)
}

func compileArithmetic(op BinaryOp, class kindClass, operand reflect.Type, box func(reflect.Value) (any, error)) (binaryFn, error) {
	switch class {
	case classInt:
		var f func(a, b int64) (int64, error)
		switch op {
		case OpAdd:
			f = func(a, b int64) (int64, error) { return a + b, nil }
		case OpSubtract:
			f = func(a, b int64) (int64, error) { return a - b, nil }
		case OpMultiply:
			f = func(a, b int64) (int64, error) { return a * b, nil }
		case OpDivide:
			f = func(a, b int64) (int64, error) {
				if b == 0 {
					return 0, fmt.Errorf("integer division by zero")
				}
				return a / b, nil
			}
		case OpModulo:
			f = func(a, b int64) (int64, error) {
				if b == 0 {
					return 0, fmt.Errorf("integer division by zero")
				}
				return a % b, nil
			}
		}
		return func(l, r any) (any, error) {
			v, err := f(reflect.ValueOf(l).Int(), reflect.ValueOf(r).Int())
			if err != nil {
				return nil, err
			}
			return box(reflect.ValueOf(v).Convert(operand))
		}, nil
	case classUint:
		var f func(a, b uint64) (uint64, error)
		switch op {
		case OpAdd:
			f = func(a, b uint64) (uint64, error) { return a + b, nil }
		case OpSubtract:
			f = func(a, b uint64) (uint64, error) { return a - b, nil }
		case OpMultiply:
			f = func(a, b uint64) (uint64, error) { return a * b, nil }
		case OpDivide:
			f = func(a, b uint64) (uint64, error) {
				if b == 0 {
					return 0, fmt.Errorf("integer division by zero")
				}
				return a / b, nil
			}
		case OpModulo:
			f = func(a, b uint64) (uint64, error) {
				if b == 0 {
					return 0, fmt.Errorf("integer division by zero")
				}
				return a % b, nil
			}
		}
		return func(l, r any) (any, error) {
			v, err := f(reflect.ValueOf(l).Uint(), reflect.ValueOf(r).Uint())
			if err != nil {
				return nil, err
			}
			return box(reflect.ValueOf(v).Convert(operand))
		}, nil
	case classFloat:
		var f func(a, b float64) float64
		switch op {
		case OpAdd:
			f = func(a, b float64) float64 { return a + b }
		case OpSubtract:
			f = func(a, b float64) float64 { return a - b }
		case OpMultiply:
			f = func(a, b float64) float64 { return a * b }
		case OpDivide:
			f = func(a, b float64) float64 { return a / b }
		default:
			return nil, fmt.Errorf("operator %s undefined for floats", op)
		}
		return func(l, r any) (any, error) {
			v := f(reflect.ValueOf(l).Float(), reflect.ValueOf(r).Float())
			return box(reflect.ValueOf(v).Convert(operand))
		}, nil
	case classString:
		if op != OpAdd {
			return nil, fmt.Errorf("operator %s undefined for strings", op)
		}
		return func(l, r any) (any, error) {
			v := reflect.ValueOf(l).String() + reflect.ValueOf(r).String()
			return box(reflect.ValueOf(v).Convert(operand))
		}, nil
	}
	return nil, fmt.Errorf("operator %s undefined for operand class", op)
}

func compileOrdering(op BinaryOp, class kindClass) (binaryFn, error) {
	var cmp func(l, r reflect.Value) int
	switch class {
	case classInt:
		cmp = func(l, r reflect.Value) int { return compareOrdered(l.Int(), r.Int()) }
	case classUint:
		cmp = func(l, r reflect.Value) int { return compareOrdered(l.Uint(), r.Uint()) }
	case classFloat:
		cmp = func(l, r reflect.Value) int { return compareOrdered(l.Float(), r.Float()) }
	case classString:
		cmp = func(l, r reflect.Value) int { return compareOrdered(l.String(), r.String()) }
	default:
		return nil, fmt.Errorf("operator %s undefined for operand class", op)
	}
	var test func(int) bool
	switch op {
	case OpLess:
		test = func(c int) bool { return c < 0 }
	case OpLessOrEqual:
		test = func(c int) bool { return c <= 0 }
	case OpGreater:
		test = func(c int) bool { return c > 0 }
	case OpGreaterOrEqual:
		test = func(c int) bool { return c >= 0 }
	}
	return func(l, r any) (any, error) {
		return test(cmp(reflect.ValueOf(l), reflect.ValueOf(r))), nil
	}, nil
}

func compileBitwise(op BinaryOp, class kindClass, operand reflect.Type, box func(reflect.Value) (any, error)) (binaryFn, error) {
	if class != classInt && class != classUint {
		return nil, fmt.Errorf("operator %s needs integer operands", op)
	}
	apply := func(a, b uint64) uint64 {
		switch op {
		case OpAnd:
			return a & b
		case OpOr:
			return a | b
		case OpXor:
			return a ^ b
		case OpShiftLeft:
			return a << b
		default:
			return a >> b
		}
	}
	if class == classInt {
		return func(l, r any) (any, error) {
			v := int64(apply(uint64(reflect.ValueOf(l).Int()), uint64(reflect.ValueOf(r).Int())))
			return box(reflect.ValueOf(v).Convert(operand))
		}, nil
	}
	return func(l, r any) (any, error) {
		v := apply(reflect.ValueOf(l).Uint(), reflect.ValueOf(r).Uint())
		return box(reflect.ValueOf(v).Convert(operand))
	}, nil
}

func compileUnary(sig unarySig) (unaryFn, error) {
	class := classify(sig.operand)
	switch sig.op {
	case OpNot:
		if class != classBool {
			return nil, fmt.Errorf("operator ! needs a bool operand, got %s", sig.operand)
		}
		return func(v any) (any, error) { return !v.(bool), nil }, nil
	case OpUnaryPlus:
		switch class {
		case classInt, classUint, classFloat, classComplex:
			return func(v any) (any, error) { return v, nil }, nil
		}
	case OpNegate:
		operand := sig.operand
		switch class {
		case classInt:
			return func(v any) (any, error) {
				return reflect.ValueOf(-reflect.ValueOf(v).Int()).Convert(operand).Interface(), nil
			}, nil
		case classFloat:
			return func(v any) (any, error) {
				return reflect.ValueOf(-reflect.ValueOf(v).Float()).Convert(operand).Interface(), nil
			}, nil
		}
	case OpComplement:
		operand := sig.operand
		switch class {
		case classInt:
			return func(v any) (any, error) {
				return reflect.ValueOf(^reflect.ValueOf(v).Int()).Convert(operand).Interface(), nil
			}, nil
		case classUint:
			return func(v any) (any, error) {
				return reflect.ValueOf(^reflect.ValueOf(v).Uint()).Convert(operand).Interface(), nil
			}, nil
		}
	}
	return nil, fmt.Errorf("operator %s undefined for %s", sig.op, sig.operand)
}

func compareOrdered[T int64 | uint64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// looseEqual compares across numeric widths the way mixed-type expression
// operands expect, falling back to boxed equality
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	ca, cb := classify(ra.Type()), classify(rb.Type())
	if ca == cb {
		switch ca {
		case classInt:
			return ra.Int() == rb.Int()
		case classUint:
			return ra.Uint() == rb.Uint()
		case classFloat:
			return ra.Float() == rb.Float()
		case classString:
			return ra.String() == rb.String()
		case classBool:
			return ra.Bool() == rb.Bool()
		}
	}
	return valuesEqual(a, b)
}

// typeOfValue is the runtime type used for dispatch signatures; nil values
// dispatch on a nil type
func typeOfValue(v any) reflect.Type {
	if v == nil {
		return nil
	}
	return reflect.TypeOf(v)
}
