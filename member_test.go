package active

import (
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
)

type person struct {
	Name string
	age  int
}

func (p *person) Age() int { return p.age }

func TestMemberReadsFieldAndGetterMethod(t *testing.T) {
	o := NewOptions()
	p := &person{Name: "Ada", age: 36}
	target := ConstantOf(p, reflect.TypeOf(p))

	field, err := Create(Member(target, "Name", reflect.TypeOf("")), o, false)
	if err != nil {
		t.Fatalf("Create field member: %v", err)
	}
	defer field.Dispose()
	if got := field.Value(); got != "Ada" {
		t.Errorf("field Value = %v, want Ada", got)
	}

	method, err := Create(Member(target, "Age", reflect.TypeOf(0)), o, false)
	if err != nil {
		t.Fatalf("Create method member: %v", err)
	}
	defer method.Dispose()
	if got := method.Value(); got != 36 {
		t.Errorf("getter Value = %v, want 36", got)
	}
}

type account struct {
	balance int
}

func (a *account) GetBalance() int { return a.balance }

func (a *account) Overdraft() int { panic("account overdrawn") }

func TestMemberReadsGetPrefixedMethod(t *testing.T) {
	o := NewOptions()
	acct := &account{balance: 42}
	n, err := Create(Member(ConstantOf(acct, reflect.TypeOf(acct)), "Balance", reflect.TypeOf(0)), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()
	if got := n.Value(); got != 42 {
		t.Errorf("Value = %v, want 42", got)
	}
}

func TestPanickingGetterMethodBecomesFault(t *testing.T) {
	o := NewOptions()
	acct := &account{}
	n, err := Create(Member(ConstantOf(acct, reflect.TypeOf(acct)), "Overdraft", reflect.TypeOf(0)), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	f := n.Fault()
	if f == nil || !strings.Contains(f.Error(), "account overdrawn") {
		t.Fatalf("Fault = %v, want the recovered panic", f)
	}
	if got := n.Value(); got != 0 {
		t.Errorf("Value under fault = %v, want the zero default", got)
	}
}

func TestPanickingGetterOverrideBecomesFault(t *testing.T) {
	o := NewOptions()
	n, err := Create(&MemberExpr{
		Name:   "Boom",
		Of:     reflect.TypeOf(0),
		Getter: func(any) (any, error) { panic("getter blew up") },
	}, o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	f := n.Fault()
	if f == nil || !strings.Contains(f.Error(), "getter blew up") {
		t.Fatalf("Fault = %v, want the recovered panic", f)
	}
}

func TestMemberMissingOnRuntimeTypeFaults(t *testing.T) {
	o := NewOptions()
	p := &person{}
	n, err := Create(Member(ConstantOf(p, reflect.TypeOf(p)), "Nope", reflect.TypeOf(0)), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()
	if _, ok := n.Fault().(*MemberNotFoundError); !ok {
		t.Errorf("Fault = %v, want MemberNotFoundError", n.Fault())
	}
}

// Scenario: p => p.Age + 1 over a mutable observable object
func TestObservablePropertyUpdatesInPlace(t *testing.T) {
	o := NewOptions()
	p := NewObservable()
	p.SetProperty("Age", 10)

	param := Param("p", reflect.TypeOf(p))
	lambda := Lambda(Binary(OpAdd,
		Member(param, "Age", reflect.TypeOf(0)),
		Constant(1),
	), param)

	a, err := Observe1[int](lambda, o, p)
	if err != nil {
		t.Fatalf("Observe1: %v", err)
	}
	defer a.Dispose()

	if got := a.Value(); got != 11 {
		t.Fatalf("Value = %v, want 11", got)
	}

	before := a.Node()
	p.SetProperty("Age", 20)
	if got := a.Value(); got != 21 {
		t.Errorf("Value after change = %v, want 21", got)
	}
	if a.Node() != before {
		t.Errorf("node was recreated instead of updated in place")
	}
}

func TestMemberResubscribesWhenTargetValueChanges(t *testing.T) {
	o := NewOptions()
	outer := NewObservable()
	first := NewObservable()
	second := NewObservable()
	first.SetProperty("X", 1)
	second.SetProperty("X", 2)
	outer.SetProperty("Inner", first)

	obsType := reflect.TypeOf(outer)
	n, err := Create(Member(
		Member(ConstantOf(outer, obsType), "Inner", obsType),
		"X", reflect.TypeOf(0),
	), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	if got := n.Value(); got != 1 {
		t.Fatalf("Value = %v, want 1", got)
	}

	outer.SetProperty("Inner", second)
	if got := n.Value(); got != 2 {
		t.Fatalf("Value after target swap = %v, want 2", got)
	}

	// the old source must be unhooked, the new one live
	first.SetProperty("X", 100)
	if got := n.Value(); got != 2 {
		t.Errorf("stale source still drives the node: Value = %v, want 2", got)
	}
	second.SetProperty("X", 3)
	if got := n.Value(); got != 3 {
		t.Errorf("new source not driving the node: Value = %v, want 3", got)
	}
}

// bulkSource mutates silently and announces one unnamed change afterwards
type bulkSource struct {
	props    map[string]any
	handlers handlerSet[string]
}

func (b *bulkSource) GetProperty(name string) (any, bool) {
	v, ok := b.props[name]
	return v, ok
}

func (b *bulkSource) SetProperty(name string, value any) {
	b.props[name] = value
}

func (b *bulkSource) AddPropertyChangeHandler(fn func(property string)) uuid.UUID {
	return b.handlers.add(fn)
}

func (b *bulkSource) RemovePropertyChangeHandler(id uuid.UUID) {
	b.handlers.remove(id)
}

func (b *bulkSource) announce() { b.handlers.notify("") }

func TestUnnamedPropertyChangeRefreshesMembers(t *testing.T) {
	o := NewOptions()
	src := &bulkSource{props: map[string]any{"X": 1}}

	n, err := Create(Member(ConstantOf(src, reflect.TypeOf(src)), "X", reflect.TypeOf(0)), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	if got := n.Value(); got != 1 {
		t.Fatalf("Value = %v, want 1", got)
	}

	src.SetProperty("X", 2)
	src.announce()
	if got := n.Value(); got != 2 {
		t.Errorf("Value after unnamed broadcast = %v, want 2", got)
	}
}

type handle struct {
	closed int
}

func (h *handle) Dispose() error {
	h.closed++
	return nil
}

func TestDisposableMemberResultsDisposedWhenRegistered(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	h1, h2 := &handle{}, &handle{}
	obs.SetProperty("H", h1)

	obsType := reflect.TypeOf(obs)
	if err := o.AddDisposableMember(obsType, "H"); err != nil {
		t.Fatalf("AddDisposableMember: %v", err)
	}

	n, err := Create(Member(ConstantOf(obs, obsType), "H", reflect.TypeOf(h1)), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	obs.SetProperty("H", h2)
	if h1.closed != 1 {
		t.Errorf("superseded result disposed %d times, want 1", h1.closed)
	}

	if err := n.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if h2.closed != 1 {
		t.Errorf("last result disposed %d times at teardown, want 1", h2.closed)
	}
}
