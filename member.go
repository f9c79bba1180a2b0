package active

import (
	"reflect"

	"github.com/google/uuid"
)

// memberNode reads a named member of its target's current value. Each
// evaluation moves the property-changed subscription to the new target value
// and, policy permitting, the container-changed subscriptions to the new
// result, so notifications always track what the node last read.
type memberNode struct {
	expr      *MemberExpr
	target    *Node
	targetTok uuid.UUID

	propSrc PropertyChangeNotifier
	propTok uuid.UUID

	listSrc ListChangeNotifier
	listTok uuid.UUID
	mapSrc  MapChangeNotifier
	mapTok  uuid.UUID

	last    any
	haveRes bool
}

func (m *memberNode) init(n *Node) error {
	if m.expr.Target == nil {
		if m.expr.Getter == nil {
			return &UnsupportedExprError{
				Kind:   KindMember,
				Detail: "static member access requires an explicit getter",
			}
		}
		return nil
	}
	target, err := Create(m.expr.Target, n.options, n.deferredCreate)
	if err != nil {
		return err
	}
	m.target = target
	m.targetTok = target.Subscribe(func(Change) { n.reevaluate() })
	return nil
}

func (m *memberNode) evaluate(n *Node) {
	var tv any
	if m.target != nil {
		var tf error
		tv, tf = m.target.read()
		if tf != nil {
			m.watchSource(n, nil)
			m.finish(n, nil, tf)
			return
		}
	}
	m.watchSource(n, tv)

	v, err := m.readMember(tv)
	m.watchResult(n, v, err)
	m.finish(n, v, err)
}

func (m *memberNode) readMember(tv any) (v any, err error) {
	defer recoverAsFault(&err)
	if m.expr.Getter != nil {
		return m.expr.Getter(tv)
	}
	if tv == nil {
		return nil, &MemberNotFoundError{TypeName: "<nil>", Name: m.expr.Name}
	}
	get, err := dispatch.getterFor(reflect.TypeOf(tv), m.expr.Name)
	if err != nil {
		return nil, err
	}
	return get(tv)
}

// finish publishes the pair and disposes a superseded result when the member
// is registered for disposal
func (m *memberNode) finish(n *Node, v any, err error) {
	old, had := m.last, m.haveRes
	m.last, m.haveRes = v, err == nil
	n.publish(v, err)
	if had && !valuesEqual(old, v) && n.options.disposesMember(m.declaring(), m.expr.Name) {
		disposeValue(n, n.options, old, "superseded")
	}
}

func (m *memberNode) declaring() reflect.Type {
	if m.expr.Target == nil {
		return nil
	}
	return m.expr.Target.Type()
}

// watchSource keeps the property-changed subscription on the current target
// value, reevaluating when the named member reports a change
func (m *memberNode) watchSource(n *Node, tv any) {
	src, _ := tv.(PropertyChangeNotifier)
	if notifierEqual(src, m.propSrc) {
		return
	}
	if m.propSrc != nil {
		m.propSrc.RemovePropertyChangeHandler(m.propTok)
	}
	m.propSrc = src
	if src != nil {
		name := m.expr.Name
		m.propTok = src.AddPropertyChangeHandler(func(changed string) {
			// an empty name broadcasts that anything may have changed
			if changed == name || changed == "" {
				n.reevaluate()
			}
		})
	}
}

// watchResult keeps container-changed subscriptions on the read result,
// gated by the listening policy
func (m *memberNode) watchResult(n *Node, v any, err error) {
	var listSrc ListChangeNotifier
	var mapSrc MapChangeNotifier
	if err == nil {
		if n.options.listensForListChanges() {
			listSrc, _ = v.(ListChangeNotifier)
		}
		if n.options.listensForMapChanges() {
			mapSrc, _ = v.(MapChangeNotifier)
		}
	}

	if !notifierEqual(listSrc, m.listSrc) {
		if m.listSrc != nil {
			m.listSrc.RemoveListChangeHandler(m.listTok)
		}
		m.listSrc = listSrc
		if listSrc != nil {
			m.listTok = listSrc.AddListChangeHandler(func(ListChange) { n.reevaluate() })
		}
	}
	if !notifierEqual(mapSrc, m.mapSrc) {
		if m.mapSrc != nil {
			m.mapSrc.RemoveMapChangeHandler(m.mapTok)
		}
		m.mapSrc = mapSrc
		if mapSrc != nil {
			m.mapTok = mapSrc.AddMapChangeHandler(func(MapChange) { n.reevaluate() })
		}
	}
}

func (m *memberNode) teardown(n *Node) error {
	if m.propSrc != nil {
		m.propSrc.RemovePropertyChangeHandler(m.propTok)
		m.propSrc = nil
	}
	if m.listSrc != nil {
		m.listSrc.RemoveListChangeHandler(m.listTok)
		m.listSrc = nil
	}
	if m.mapSrc != nil {
		m.mapSrc.RemoveMapChangeHandler(m.mapTok)
		m.mapSrc = nil
	}
	if m.haveRes && n.options.disposesMember(m.declaring(), m.expr.Name) {
		disposeValue(n, n.options, m.last, "teardown")
	}
	if m.target == nil {
		return nil
	}
	return teardownChildren([]*Node{m.target}, []uuid.UUID{m.targetTok})
}

func (m *memberNode) children() []*Node {
	if m.target == nil {
		return nil
	}
	return []*Node{m.target}
}

// notifierEqual compares two notifier references without panicking on
// non-comparable implementations
func notifierEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return valuesEqual(a, b)
}
