package active

import (
	"fmt"
	"reflect"
)

// Capability closures over reflected access. Reflection runs once per
// (type, member) signature when a closure is compiled; evaluation hot paths
// only ever call the closures. Compiled closures are cached process-wide in
// dispatch.go.

// getterFn reads a member of a boxed target
type getterFn func(target any) (any, error)

// setterFn writes a member of a boxed target
type setterFn func(target any, value any) error

// invokerFn calls a method or function over boxed arguments
type invokerFn func(target any, args []any) (any, error)

// recoverAsFault converts a panic raised by user code into an error result
// so it surfaces as a node fault instead of unwinding through a reader
func recoverAsFault(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = fmt.Errorf("recovered panic: %w", e)
			return
		}
		*err = fmt.Errorf("recovered panic: %v", r)
	}
}

// typeDefault returns the boxed zero value of t; nil for a nil type
func typeDefault(t reflect.Type) any {
	if t == nil {
		return nil
	}
	return reflect.Zero(t).Interface()
}

// valuesEqual compares boxed values: comparable types by ==, containers and
// functions by pointer identity, anything else is never equal
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	}
	if !ra.Type().Comparable() {
		return false
	}
	return a == b
}

// compileGetter resolves how to read the named member of targetType: a
// dynamic property bag, an exported struct field, or a niladic getter method
// (Name or GetName), in that order.
func compileGetter(targetType reflect.Type, name string) (getterFn, error) {
	if targetType.Implements(propertyProviderType) {
		return func(target any) (v any, err error) {
			defer recoverAsFault(&err)
			v, ok := target.(PropertyProvider).GetProperty(name)
			if !ok {
				return nil, &MemberNotFoundError{TypeName: fmt.Sprintf("%T", target), Name: name}
			}
			return v, nil
		}, nil
	}

	structType := targetType
	deref := false
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
		deref = true
	}
	if structType.Kind() == reflect.Struct {
		if field, ok := structType.FieldByName(name); ok && field.IsExported() {
			index := field.Index
			return func(target any) (any, error) {
				rv := reflect.ValueOf(target)
				if deref {
					if rv.IsNil() {
						return nil, fmt.Errorf("reading %s of nil %s", name, targetType)
					}
					rv = rv.Elem()
				}
				return rv.FieldByIndex(index).Interface(), nil
			}, nil
		}
	}

	for _, candidate := range []string{name, "Get" + name} {
		if method, ok := targetType.MethodByName(candidate); ok {
			mt := method.Type
			if mt.NumIn() == 1 && mt.NumOut() >= 1 && mt.NumOut() <= 2 {
				call := compileMethodCall(method)
				return func(target any) (any, error) {
					return call(target, nil)
				}, nil
			}
		}
	}

	return nil, &MemberNotFoundError{TypeName: targetType.String(), Name: name}
}

// compileSetter resolves how to write the named member of targetType
func compileSetter(targetType reflect.Type, name string) (setterFn, error) {
	if targetType.Implements(propertyProviderType) {
		return func(target any, value any) (err error) {
			defer recoverAsFault(&err)
			target.(PropertyProvider).SetProperty(name, value)
			return nil
		}, nil
	}

	if targetType.Kind() == reflect.Ptr && targetType.Elem().Kind() == reflect.Struct {
		if field, ok := targetType.Elem().FieldByName(name); ok && field.IsExported() {
			index := field.Index
			fieldType := field.Type
			return func(target any, value any) error {
				rv := reflect.ValueOf(target)
				if rv.IsNil() {
					return fmt.Errorf("writing %s of nil %s", name, targetType)
				}
				cv, err := convertBoxed(value, fieldType)
				if err != nil {
					return err
				}
				rv.Elem().FieldByIndex(index).Set(cv)
				return nil
			}, nil
		}
	}

	if method, ok := targetType.MethodByName("Set" + name); ok {
		mt := method.Type
		if mt.NumIn() == 2 && mt.NumOut() <= 1 {
			call := compileMethodCall(method)
			return func(target any, value any) error {
				_, err := call(target, []any{value})
				return err
			}, nil
		}
	}

	return nil, &MemberNotFoundError{TypeName: targetType.String(), Name: name}
}

// compileMethodCall wraps a reflected method as an invoker over boxed values
func compileMethodCall(method reflect.Method) invokerFn {
	mt := method.Type
	fn := method.Func
	return func(target any, args []any) (v any, err error) {
		defer recoverAsFault(&err)
		in := make([]reflect.Value, 0, len(args)+1)
		in = append(in, reflect.ValueOf(target))
		for i, a := range args {
			cv, err := convertBoxed(a, mt.In(i+1))
			if err != nil {
				return nil, fmt.Errorf("argument %d of %s: %w", i, method.Name, err)
			}
			in = append(in, cv)
		}
		return finishCall(fn.Call(in))
	}
}

// compileMethodInvoker resolves a named method on targetType taking the given
// number of arguments
func compileMethodInvoker(targetType reflect.Type, name string, argCount int) (invokerFn, error) {
	method, ok := targetType.MethodByName(name)
	if !ok {
		return nil, &MemberNotFoundError{TypeName: targetType.String(), Name: name}
	}
	mt := method.Type
	if !mt.IsVariadic() && mt.NumIn() != argCount+1 {
		return nil, fmt.Errorf("method %s.%s takes %d arguments, got %d",
			targetType, name, mt.NumIn()-1, argCount)
	}
	if mt.NumOut() == 0 || mt.NumOut() > 2 {
		return nil, fmt.Errorf("method %s.%s must return a value or (value, error)", targetType, name)
	}
	return compileMethodCall(method), nil
}

// compileFuncInvoker wraps a func value as an invoker over boxed arguments
func compileFuncInvoker(fn any) (invokerFn, error) {
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("expected a func value, got %T", fn)
	}
	ft := rv.Type()
	if ft.NumOut() == 0 || ft.NumOut() > 2 {
		return nil, fmt.Errorf("func %s must return a value or (value, error)", ft)
	}
	return func(_ any, args []any) (v any, err error) {
		defer recoverAsFault(&err)
		if !ft.IsVariadic() && len(args) != ft.NumIn() {
			return nil, fmt.Errorf("func %s takes %d arguments, got %d", ft, ft.NumIn(), len(args))
		}
		in := make([]reflect.Value, 0, len(args))
		for i, a := range args {
			argType := ft.In(min(i, ft.NumIn()-1))
			if ft.IsVariadic() && i >= ft.NumIn()-1 {
				argType = ft.In(ft.NumIn() - 1).Elem()
			}
			cv, err := convertBoxed(a, argType)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			in = append(in, cv)
		}
		return finishCall(rv.Call(in))
	}, nil
}

// ctorParamTypes lists the parameter types of a constructor func, nil for a
// zero-value construction
func ctorParamTypes(ctor any) []reflect.Type {
	if ctor == nil {
		return nil
	}
	rv := reflect.ValueOf(ctor)
	if rv.Kind() != reflect.Func {
		return nil
	}
	ft := rv.Type()
	params := make([]reflect.Type, ft.NumIn())
	for i := range params {
		params[i] = ft.In(i)
	}
	return params
}

// finishCall converts reflected results into (value, error)
func finishCall(out []reflect.Value) (any, error) {
	switch len(out) {
	case 1:
		return out[0].Interface(), nil
	case 2:
		var err error
		if e := out[1].Interface(); e != nil {
			var ok bool
			if err, ok = e.(error); !ok {
				return nil, fmt.Errorf("second result is %T, not error", e)
			}
		}
		if err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	}
	return nil, fmt.Errorf("call produced %d results", len(out))
}

// convertBoxed adapts a boxed value to the required reflected type
func convertBoxed(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == t || rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

var propertyProviderType = reflect.TypeOf((*PropertyProvider)(nil)).Elem()
