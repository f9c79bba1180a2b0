package active

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type widget struct {
	Size     int
	disposed int
}

func (w *widget) Dispose() error {
	w.disposed++
	return nil
}

func TestConstructedObjectsRebuildOnArgumentChange(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	obs.SetProperty("Size", 1)

	var made []*widget
	ctor := func(size int) *widget {
		w := &widget{Size: size}
		made = append(made, w)
		return w
	}

	n, err := Create(New(reflect.TypeOf(&widget{}), ctor,
		Member(ConstantOf(obs, reflect.TypeOf(obs)), "Size", reflect.TypeOf(0)),
	), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	first := n.Value().(*widget)
	if first.Size != 1 {
		t.Fatalf("Size = %d, want 1", first.Size)
	}

	obs.SetProperty("Size", 2)
	second := n.Value().(*widget)
	if second == first {
		t.Errorf("expected a reconstructed instance after argument change")
	}
	if second.Size != 2 {
		t.Errorf("Size = %d, want 2", second.Size)
	}
	if len(made) != 2 {
		t.Errorf("constructor ran %d times, want 2", len(made))
	}
}

func TestSupersededConstructedObjectDisposedExactlyOnce(t *testing.T) {
	o := NewOptions()
	widgetType := reflect.TypeOf(&widget{})
	if err := o.AddDisposableConstructedType(widgetType, reflect.TypeOf(0)); err != nil {
		t.Fatalf("AddDisposableConstructedType: %v", err)
	}

	obs := NewObservable()
	obs.SetProperty("Size", 1)
	var made []*widget
	ctor := func(size int) *widget {
		w := &widget{Size: size}
		made = append(made, w)
		return w
	}

	n, err := Create(New(widgetType, ctor,
		Member(ConstantOf(obs, reflect.TypeOf(obs)), "Size", reflect.TypeOf(0)),
	), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	obs.SetProperty("Size", 2)
	obs.SetProperty("Size", 3)

	if len(made) != 3 {
		t.Fatalf("constructor ran %d times, want 3", len(made))
	}
	if made[0].disposed != 1 || made[1].disposed != 1 {
		t.Errorf("superseded disposals = %d, %d, want 1, 1", made[0].disposed, made[1].disposed)
	}
	if made[2].disposed != 0 {
		t.Errorf("live instance disposed %d times, want 0", made[2].disposed)
	}

	if err := n.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if made[2].disposed != 1 {
		t.Errorf("last instance disposed %d times at teardown, want 1", made[2].disposed)
	}
}

func TestZeroValueConstruction(t *testing.T) {
	n, err := Create(New(reflect.TypeOf(&widget{}), nil), NewOptions(), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()
	if got := n.Value(); got != (*widget)(nil) {
		t.Errorf("Value = %v, want typed nil", got)
	}
}

func TestArrayConstruction(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	obs.SetProperty("N", 2)

	n, err := Create(NewArray(reflect.TypeOf(0),
		Constant(1),
		Member(ConstantOf(obs, reflect.TypeOf(obs)), "N", reflect.TypeOf(0)),
		Constant(3),
	), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	if diff := cmp.Diff([]int{1, 2, 3}, n.Value()); diff != "" {
		t.Fatalf("array mismatch (-want +got):\n%s", diff)
	}

	obs.SetProperty("N", 20)
	if diff := cmp.Diff([]int{1, 20, 3}, n.Value()); diff != "" {
		t.Errorf("array after change (-want +got):\n%s", diff)
	}
}

func TestMemberInitPatchesAndReconstructs(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	obs.SetProperty("Size", 1)
	obs.SetProperty("Label", "a")

	var made []*labeledWidget
	ctor := func(size int) *labeledWidget {
		w := &labeledWidget{Size: size}
		made = append(made, w)
		return w
	}

	n, err := Create(MemberInit(
		New(reflect.TypeOf(&labeledWidget{}), ctor,
			Member(ConstantOf(obs, reflect.TypeOf(obs)), "Size", reflect.TypeOf(0)),
		),
		MemberAssignment{
			Name:  "Label",
			Value: Member(ConstantOf(obs, reflect.TypeOf(obs)), "Label", reflect.TypeOf("")),
		},
	), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	first := n.Value().(*labeledWidget)
	if first.Size != 1 || first.Label != "a" {
		t.Fatalf("initial object = %+v", first)
	}

	// assignment change patches in place
	obs.SetProperty("Label", "b")
	if got := n.Value().(*labeledWidget); got != first {
		t.Errorf("assignment change reconstructed the object")
	}
	if first.Label != "b" {
		t.Errorf("Label = %q, want b", first.Label)
	}
	if len(made) != 1 {
		t.Errorf("constructor ran %d times, want 1", len(made))
	}

	// base change reconstructs and reapplies assignments
	obs.SetProperty("Size", 2)
	second := n.Value().(*labeledWidget)
	if second == first {
		t.Errorf("base change did not reconstruct the object")
	}
	if second.Size != 2 || second.Label != "b" {
		t.Errorf("reconstructed object = %+v, want Size 2 Label b", second)
	}
}

type labeledWidget struct {
	Size  int
	Label string
}

type gauge struct {
	a, b     int
	setCalls map[string]int
}

func (g *gauge) SetA(v int) { g.a = v; g.setCalls["A"]++ }
func (g *gauge) SetB(v int) { g.b = v; g.setCalls["B"]++ }

func TestMemberInitReappliesOnlyChangedAssignments(t *testing.T) {
	o := NewOptions()
	obs := NewObservable()
	obs.SetProperty("A", 1)
	obs.SetProperty("B", 10)
	obsType := reflect.TypeOf(obs)

	var g *gauge
	ctor := func() *gauge {
		g = &gauge{setCalls: map[string]int{}}
		return g
	}

	n, err := Create(MemberInit(
		New(reflect.TypeOf(&gauge{}), ctor),
		MemberAssignment{Name: "A", Value: Member(ConstantOf(obs, obsType), "A", reflect.TypeOf(0))},
		MemberAssignment{Name: "B", Value: Member(ConstantOf(obs, obsType), "B", reflect.TypeOf(0))},
	), o, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer n.Dispose()

	if g.a != 1 || g.b != 10 {
		t.Fatalf("initial object = %+v", g)
	}
	if g.setCalls["A"] != 1 || g.setCalls["B"] != 1 {
		t.Fatalf("initial setter calls = %v, want one each", g.setCalls)
	}

	obs.SetProperty("B", 20)
	if g.b != 20 {
		t.Errorf("b = %d, want 20", g.b)
	}
	if g.setCalls["B"] != 2 {
		t.Errorf("changed setter ran %d times, want 2", g.setCalls["B"])
	}
	if g.setCalls["A"] != 1 {
		t.Errorf("unchanged setter reran %d times, want 1", g.setCalls["A"])
	}
}
