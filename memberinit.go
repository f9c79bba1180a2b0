package active

import (
	"reflect"

	"github.com/google/uuid"
)

// memberInitNode layers member assignments atop a constructed object. The
// constructed type must be settable by reference; the underlying construct
// child owns reconstruction and superseded-instance disposal, so this node
// only applies assignments. While the base object stays the same instance,
// only the assignments whose value children changed are reapplied; a new
// object from the construct child gets every assignment applied.
type memberInitNode struct {
	expr    *MemberInitExpr
	newNode *Node
	newTok  uuid.UUID
	inits   []*Node
	tokens  []uuid.UUID

	dirty   []bool
	lastObj any
	haveObj bool
}

func newMemberInitNode(x *MemberInitExpr) (nodeImpl, error) {
	t := x.New.Of
	settable := t != nil &&
		(t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct ||
			t.Implements(propertyProviderType))
	if !settable {
		return nil, ErrValueTypeMemberInit
	}
	return &memberInitNode{expr: x}, nil
}

func (m *memberInitNode) init(n *Node) error {
	newNode, err := Create(m.expr.New, n.options, n.deferredCreate)
	if err != nil {
		return err
	}
	m.newNode = newNode
	m.newTok = newNode.Subscribe(func(Change) { n.reevaluate() })

	m.dirty = make([]bool, len(m.expr.Inits))
	for i, assign := range m.expr.Inits {
		child, err := Create(assign.Value, n.options, n.deferredCreate)
		if err != nil {
			teardownChildren(m.inits, m.tokens)
			newNode.Unsubscribe(m.newTok)
			newNode.Dispose()
			return err
		}
		m.inits = append(m.inits, child)
		m.tokens = append(m.tokens, child.Subscribe(func(Change) {
			n.withEval(func() {
				m.dirty[i] = true
				m.evaluate(n)
			})
		}))
	}
	return nil
}

func (m *memberInitNode) evaluate(n *Node) {
	obj, f := m.newNode.read()
	if f != nil {
		m.haveObj = false
		n.publish(nil, f)
		return
	}
	if isNilValue(obj) {
		m.haveObj = false
		n.publish(nil, ErrValueTypeMemberInit)
		return
	}

	// same instance as last time: patch only what changed
	patch := m.haveObj && valuesEqual(obj, m.lastObj)
	objType := reflect.TypeOf(obj)
	for i, child := range m.inits {
		if patch && !m.dirty[i] {
			continue
		}
		v, vf := child.read()
		if vf != nil {
			m.haveObj = false
			n.publish(nil, vf)
			return
		}
		set, err := dispatch.setterFor(objType, m.expr.Inits[i].Name)
		if err != nil {
			m.haveObj = false
			n.publish(nil, err)
			return
		}
		if err := set(obj, v); err != nil {
			m.haveObj = false
			n.publish(nil, err)
			return
		}
	}
	for i := range m.dirty {
		m.dirty[i] = false
	}
	m.lastObj, m.haveObj = obj, true
	n.publish(obj, nil)
}

func (m *memberInitNode) teardown(n *Node) error {
	return teardownChildren(
		append([]*Node{m.newNode}, m.inits...),
		append([]uuid.UUID{m.newTok}, m.tokens...),
	)
}

func (m *memberInitNode) children() []*Node {
	return append([]*Node{m.newNode}, m.inits...)
}
