package active

import (
	"reflect"
	"sync"
	"testing"
)

func countingGetter(name string, count *int, value func() (any, error)) *MemberExpr {
	return &MemberExpr{
		Name: name,
		Of:   reflect.TypeOf(0),
		Getter: func(any) (any, error) {
			*count++
			return value()
		},
	}
}

func TestCreateDedupsIdenticalComputations(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	obs.SetProperty("Age", 10)

	mk := func() Expr {
		return Binary(OpAdd,
			Member(ConstantOf(obs, reflect.TypeOf(obs)), "Age", reflect.TypeOf(0)),
			Constant(1),
		)
	}

	n1, err := Create(mk(), o, false)
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	n2, err := Create(mk(), o, false)
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if n1 != n2 {
		t.Fatalf("identical computations produced distinct nodes")
	}
	if got := nodes.refs(n1); got != 2 {
		t.Fatalf("refcount = %d, want 2", got)
	}

	if err := n1.Dispose(); err != nil {
		t.Fatalf("disposing first handle: %v", err)
	}
	if got := n2.Value(); got != 11 {
		t.Errorf("after disposing one handle, Value = %v, want 11", got)
	}
	if err := n2.Dispose(); err != nil {
		t.Fatalf("disposing second handle: %v", err)
	}
	if got := nodes.refs(n1); got != 0 {
		t.Errorf("refcount after full disposal = %d, want 0", got)
	}
}

func TestConcurrentCreateInitializesOnce(t *testing.T) {
	o := NewOptions()
	evals := 0
	getter := func(any) (any, error) {
		evals++
		return 42, nil
	}

	const callers = 16
	nodesOut := make([]*Node, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := &MemberExpr{Name: "Shared", Of: reflect.TypeOf(0), Getter: getter}
			n, err := Create(e, o, false)
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			nodesOut[i] = n
		}(i)
	}
	wg.Wait()

	first := nodesOut[0]
	for i, n := range nodesOut {
		if n != first {
			t.Fatalf("caller %d got a different node", i)
		}
	}
	if evals != 1 {
		t.Errorf("evaluations during concurrent create = %d, want 1", evals)
	}
	if got := nodes.refs(first); got != callers {
		t.Errorf("refcount = %d, want %d", got, callers)
	}
	for i := 0; i < callers; i++ {
		if err := first.Dispose(); err != nil {
			t.Fatalf("dispose %d: %v", i, err)
		}
	}
	if got := nodes.refs(first); got != 0 {
		t.Errorf("refcount after %d disposals = %d, want 0", callers, got)
	}
}

func TestInitFailureIsCachedAndNeverRetried(t *testing.T) {
	o := NewOptions()
	// an unsubstituted parameter child makes initialization fail
	bad := Binary(OpAdd, Param("x", reflect.TypeOf(0)), Constant(1))

	_, err1 := Create(bad, o, false)
	if err1 == nil {
		t.Fatalf("expected construction error for an unsubstituted parameter")
	}
	_, err2 := Create(Binary(OpAdd, Param("x", reflect.TypeOf(0)), Constant(1)), o, false)
	if err2 == nil {
		t.Fatalf("expected the cached construction error on retry")
	}
	if err1 != err2 {
		t.Errorf("retry returned a different error: %v vs %v", err1, err2)
	}
}

func TestValueTypeMemberInitRejected(t *testing.T) {
	bad := MemberInit(New(reflect.TypeOf(0), nil), MemberAssignment{Name: "X", Value: Constant(1)})
	if _, err := Create(bad, NewOptions(), false); err != ErrValueTypeMemberInit {
		t.Fatalf("error = %v, want ErrValueTypeMemberInit", err)
	}
}

func TestOptionsDistinguishOtherwiseEqualNodes(t *testing.T) {
	o1, o2 := NewOptions(), NewOptions()
	obs := NewObservable()
	obs.SetProperty("Age", 3)
	mk := func() Expr {
		return Member(ConstantOf(obs, reflect.TypeOf(obs)), "Age", reflect.TypeOf(0))
	}

	n1, err := Create(mk(), o1, false)
	if err != nil {
		t.Fatalf("Create under o1: %v", err)
	}
	defer n1.Dispose()
	n2, err := Create(mk(), o2, false)
	if err != nil {
		t.Fatalf("Create under o2: %v", err)
	}
	defer n2.Dispose()

	if n1 == n2 {
		t.Errorf("nodes built under different Options should not be shared")
	}
}
