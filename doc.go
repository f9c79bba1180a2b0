// Package active turns a declarative expression tree into a live value: one
// that re-evaluates itself and notifies observers whenever any runtime value
// it transitively reads changes.
//
// # Overview
//
// The package is organized around three core concepts:
//
//  1. Expressions: pre-parsed trees describing a computation (expr.go)
//  2. Nodes: live operations sharing one refcounted instance per canonical
//     computation, created only through Create
//  3. Active expressions: typed facades binding lambda parameters to
//     argument values
//
// # Basic Usage
//
// Describe the computation as a tree and bind it:
//
//	p := NewObservable()
//	p.SetProperty("Age", 10)
//
//	param := Param("p", reflect.TypeOf(p))
//	body := Binary(OpAdd,
//	    Member(param, "Age", reflect.TypeOf(0)),
//	    Constant(1),
//	)
//
//	age, err := Observe1[int](Lambda(body, param), nil, p)
//	age.Value() // 11
//
//	p.SetProperty("Age", 20)
//	age.Value() // 21, recomputed in place
//
// Observers see every change of the underlying node:
//
//	tok := age.Subscribe(func(c TypedChange[int]) {
//	    fmt.Println(c.OldValue, "->", c.NewValue)
//	})
//	defer age.Unsubscribe(tok)
//
// # Sharing and Disposal
//
// Two logically identical computations built under the same Options share
// one node. Every successful Create or Observe call is a handle; each handle
// must be balanced by Dispose, and the node is torn down only when the last
// handle goes.
//
// # Faults
//
// Errors raised while evaluating an operator, getter, method, or constructor
// become the node's Fault. Faults flow through the tree as values, never as
// returned errors; a fault persists until a dependency change causes a
// successful re-evaluation. Value and Fault are mutually exclusive.
//
// # Change Tracking
//
// Member and index nodes subscribe to what they last read: property changes
// by name, structural list changes by index range, and map changes by key.
// A list event outside the bound index or a map event for a different key
// re-evaluates nothing.
//
// # Policy
//
// Options is a freeze-once bag controlling disposal of superseded values and
// container-change listening. It freezes when the first node is built under
// it; see OptionsFromYAML for loading a policy from configuration.
package active
