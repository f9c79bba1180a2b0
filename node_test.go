package active

import (
	"fmt"
	"reflect"
	"testing"
)

func TestFaultPropagatesVerbatimWithDefaultValue(t *testing.T) {
	o := NewOptions()
	boom := fmt.Errorf("getter exploded")
	left := &MemberExpr{
		Name: "Faulty",
		Of:   reflect.TypeOf(0),
		Getter: func(any) (any, error) {
			return nil, boom
		},
	}
	n, err := Create(Binary(OpAdd, left, Constant(1)), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	if got := n.Fault(); got != boom {
		t.Errorf("Fault = %v, want the origin error unwrapped and unwrapped only", got)
	}
	if got := n.Value(); got != 0 {
		t.Errorf("Value under fault = %v, want the result type's default 0", got)
	}
}

func TestDeferredNodeEvaluatesExactlyOnceOnFirstRead(t *testing.T) {
	o := NewOptions()
	count := 0
	e := countingGetter("DeferredProbe", &count, func() (any, error) { return 7, nil })

	n, err := Create(e, o, true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	if count != 0 {
		t.Fatalf("evaluations before first read = %d, want 0", count)
	}
	if got := n.Value(); got != 7 {
		t.Errorf("Value = %v, want 7", got)
	}
	if count != 1 {
		t.Errorf("evaluations after first read = %d, want 1", count)
	}
	n.Value()
	n.Fault()
	if count != 1 {
		t.Errorf("evaluations after repeated reads = %d, want 1", count)
	}
}

func TestShortCircuitAndNeverForcesRightSubtree(t *testing.T) {
	o := NewOptions()
	count := 0
	right := &MemberExpr{
		Name: "LazyRight",
		Of:   reflect.TypeOf(true),
		Getter: func(any) (any, error) {
			count++
			return true, nil
		},
	}
	n, err := Create(&BinaryExpr{
		Op:    OpAndAlso,
		Left:  Constant(false),
		Right: right,
		Of:    reflect.TypeOf(true),
	}, o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	if got := n.Value(); got != false {
		t.Errorf("Value = %v, want false", got)
	}
	if count != 0 {
		t.Errorf("right subtree evaluations = %d, want 0", count)
	}
}

func TestShortCircuitAndForcesRightWhenLeftTrue(t *testing.T) {
	o := NewOptions()
	count := 0
	right := &MemberExpr{
		Name: "ForcedRight",
		Of:   reflect.TypeOf(true),
		Getter: func(any) (any, error) {
			count++
			return true, nil
		},
	}
	n, err := Create(&BinaryExpr{
		Op:    OpAndAlso,
		Left:  Constant(true),
		Right: right,
		Of:    reflect.TypeOf(true),
	}, o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	if got := n.Value(); got != true {
		t.Errorf("Value = %v, want true", got)
	}
	if count != 1 {
		t.Errorf("right subtree evaluations = %d, want 1", count)
	}
}

func TestCoalesceTakesRightOnNilAndConvertsLeft(t *testing.T) {
	o := NewOptions()
	strType := reflect.TypeOf("")

	nilLeft, err := Create(&BinaryExpr{
		Op:    OpCoalesce,
		Left:  ConstantOf(nil, strType),
		Right: Constant("fallback"),
		Of:    strType,
	}, o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer nilLeft.Dispose()
	if got := nilLeft.Value(); got != "fallback" {
		t.Errorf("nil left: Value = %v, want fallback", got)
	}

	converted, err := Create(&BinaryExpr{
		Op:         OpCoalesce,
		Left:       Constant("x"),
		Right:      Constant("unused"),
		Of:         strType,
		Conversion: func(s string) string { return s + "!" },
	}, o, false)
	if err != nil {
		t.Fatalf("Create with conversion: %v", err)
	}
	defer converted.Dispose()
	if got := converted.Value(); got != "x!" {
		t.Errorf("converted left: Value = %v, want x!", got)
	}
}

func TestConditionalRoutesOnlyChosenBranch(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	obs.SetProperty("Flag", true)
	obs.SetProperty("A", 1)
	obs.SetProperty("B", 2)
	obsType := reflect.TypeOf(obs)
	target := ConstantOf(obs, obsType)

	n, err := Create(Conditional(
		Member(target, "Flag", reflect.TypeOf(true)),
		Member(target, "A", reflect.TypeOf(0)),
		Member(target, "B", reflect.TypeOf(0)),
	), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	if got := n.Value(); got != 1 {
		t.Fatalf("Value = %v, want 1", got)
	}

	fired := 0
	tok := n.Subscribe(func(Change) { fired++ })
	defer n.Unsubscribe(tok)

	obs.SetProperty("B", 20) // unchosen branch
	if fired != 0 {
		t.Errorf("unchosen-branch change fired %d notifications, want 0", fired)
	}
	if got := n.Value(); got != 1 {
		t.Errorf("Value after unchosen-branch change = %v, want 1", got)
	}

	obs.SetProperty("Flag", false)
	if got := n.Value(); got != 20 {
		t.Errorf("Value after test flip = %v, want 20", got)
	}
	if fired == 0 {
		t.Errorf("test flip fired no notifications")
	}
}

func TestTypeAssertIsAndAs(t *testing.T) {
	o := NewOptions()
	anyType := reflect.TypeOf((*any)(nil)).Elem()
	operand := ConstantOf("hello", anyType)

	isNode, err := Create(&TypeAssertExpr{Op: OpIs, Operand: operand, Target: reflect.TypeOf("")}, o, false)
	if err != nil {
		t.Fatalf("Create is-node: %v", err)
	}
	defer isNode.Dispose()
	if got := isNode.Value(); got != true {
		t.Errorf("is: Value = %v, want true", got)
	}

	asNode, err := Create(&TypeAssertExpr{Op: OpAs, Operand: operand, Target: reflect.TypeOf(0)}, o, false)
	if err != nil {
		t.Fatalf("Create as-node: %v", err)
	}
	defer asNode.Dispose()
	if got := asNode.Value(); got != 0 {
		t.Errorf("as with mismatched target: Value = %v, want 0", got)
	}
}

func TestUnaryOperators(t *testing.T) {
	o := NewOptions()
	cases := []struct {
		name string
		expr Expr
		want any
	}{
		{"negate", Unary(OpNegate, Constant(5)), -5},
		{"not", Unary(OpNot, Constant(true)), false},
		{"complement", Unary(OpComplement, Constant(0)), -1},
	}
	for _, tc := range cases {
		n, err := Create(tc.expr, o, false)
		if err != nil {
			t.Fatalf("%s: Create: %v", tc.name, err)
		}
		if got := n.Value(); got != tc.want {
			t.Errorf("%s: Value = %v, want %v", tc.name, got, tc.want)
		}
		n.Dispose()
	}
}

func TestObserverSeesOldAndNewPairs(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	obs.SetProperty("N", 10)

	n, err := Create(Binary(OpMultiply,
		Member(ConstantOf(obs, reflect.TypeOf(obs)), "N", reflect.TypeOf(0)),
		Constant(2),
	), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	var got []Change
	tok := n.Subscribe(func(c Change) { got = append(got, c) })
	defer n.Unsubscribe(tok)

	obs.SetProperty("N", 15)
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if got[0].OldValue != 20 || got[0].NewValue != 30 {
		t.Errorf("change = %v -> %v, want 20 -> 30", got[0].OldValue, got[0].NewValue)
	}

	obs.SetProperty("N", 15) // unchanged
	if len(got) != 1 {
		t.Errorf("unchanged write fired %d extra notifications", len(got)-1)
	}
}
