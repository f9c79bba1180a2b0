package active

import (
	"reflect"

	"github.com/google/uuid"
)

// indexNode reads target[arg]. List-shaped containers are tracked by index
// range: structural events outside the bound index are ignored. Map-shaped
// containers are tracked by key: removal of the bound key synthesizes a
// key-not-found fault and insertion or update of it pushes the new value
// without re-invoking the read.
type indexNode struct {
	expr      *IndexExpr
	target    *Node
	arg       *Node
	targetTok uuid.UUID
	argTok    uuid.UUID

	listSrc ListChangeNotifier
	listTok uuid.UUID
	mapSrc  MapChangeNotifier
	mapTok  uuid.UUID

	curIdx   int
	idxValid bool
	curKey   any
	keyValid bool
}

func newIndexNode(x *IndexExpr) (nodeImpl, error) {
	if len(x.Args) != 1 {
		return nil, &UnsupportedExprError{
			Kind:   KindIndex,
			Detail: "index access takes exactly one argument",
		}
	}
	return &indexNode{expr: x}, nil
}

func (ix *indexNode) init(n *Node) error {
	target, err := Create(ix.expr.Target, n.options, n.deferredCreate)
	if err != nil {
		return err
	}
	arg, err := Create(ix.expr.Args[0], n.options, n.deferredCreate)
	if err != nil {
		target.Dispose()
		return err
	}
	ix.target, ix.arg = target, arg
	ix.targetTok = target.Subscribe(func(Change) { n.reevaluate() })
	ix.argTok = arg.Subscribe(func(Change) { n.reevaluate() })
	return nil
}

func (ix *indexNode) evaluate(n *Node) {
	tv, tf := ix.target.read()
	if tf != nil {
		ix.watchContainer(n, nil)
		n.publish(nil, tf)
		return
	}
	// track the container even while the argument faults, so structural
	// events on a swapped-in target are not missed
	ix.watchContainer(n, tv)

	av, af := ix.arg.read()
	if af != nil {
		ix.idxValid, ix.keyValid = false, false
		n.publish(nil, af)
		return
	}

	ix.curKey = av
	ix.keyValid = true
	ix.curIdx, ix.idxValid = toIndex(av)

	n.publish(readIndexed(tv, av))
}

func readIndexed(tv, av any) (v any, err error) {
	defer recoverAsFault(&err)
	if tv == nil {
		return nil, &KeyNotFoundError{Key: av}
	}
	if r, ok := tv.(IndexReader); ok {
		i, ok := toIndex(av)
		if !ok {
			return nil, &KeyNotFoundError{Key: av}
		}
		return r.At(i)
	}
	if r, ok := tv.(KeyReader); ok {
		v, ok := r.Value(av)
		if !ok {
			return nil, &KeyNotFoundError{Key: av}
		}
		return v, nil
	}

	rv := reflect.ValueOf(tv)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		i, ok := toIndex(av)
		if !ok || i < 0 || i >= rv.Len() {
			return nil, &KeyNotFoundError{Key: av}
		}
		return rv.Index(i).Interface(), nil
	case reflect.Map:
		kv := reflect.ValueOf(av)
		if !kv.IsValid() || !kv.Type().AssignableTo(rv.Type().Key()) {
			return nil, &KeyNotFoundError{Key: av}
		}
		out := rv.MapIndex(kv)
		if !out.IsValid() {
			return nil, &KeyNotFoundError{Key: av}
		}
		return out.Interface(), nil
	}
	return nil, &UnsupportedExprError{
		Kind:   KindIndex,
		Detail: "target is not an indexable container",
	}
}

// watchContainer keeps structural-change subscriptions on the current target
// value, gated by the listening policy
func (ix *indexNode) watchContainer(n *Node, tv any) {
	var listSrc ListChangeNotifier
	var mapSrc MapChangeNotifier
	if n.options.listensForListChanges() {
		listSrc, _ = tv.(ListChangeNotifier)
	}
	if n.options.listensForMapChanges() {
		mapSrc, _ = tv.(MapChangeNotifier)
	}

	if !notifierEqual(listSrc, ix.listSrc) {
		if ix.listSrc != nil {
			ix.listSrc.RemoveListChangeHandler(ix.listTok)
		}
		ix.listSrc = listSrc
		if listSrc != nil {
			ix.listTok = listSrc.AddListChangeHandler(func(c ListChange) {
				ix.onListChange(n, c)
			})
		}
	}
	if !notifierEqual(mapSrc, ix.mapSrc) {
		if ix.mapSrc != nil {
			ix.mapSrc.RemoveMapChangeHandler(ix.mapTok)
		}
		ix.mapSrc = mapSrc
		if mapSrc != nil {
			ix.mapTok = mapSrc.AddMapChangeHandler(func(c MapChange) {
				ix.onMapChange(n, c)
			})
		}
	}
}

func (ix *indexNode) onListChange(n *Node, c ListChange) {
	n.withEval(func() {
		if !ix.idxValid {
			ix.evaluate(n)
			return
		}
		if listChangeCovers(c, ix.curIdx) {
			ix.evaluate(n)
		}
	})
}

// listChangeCovers reports whether a structural event can affect the value
// at the bound index
func listChangeCovers(c ListChange, idx int) bool {
	count := c.Count
	if count < 1 {
		count = 1
	}
	switch c.Action {
	case ListReset:
		return true
	case ListAdd, ListRemove:
		// everything at or after the insertion/removal point shifts
		return c.Index <= idx
	case ListReplace:
		return c.Index <= idx && idx < c.Index+count
	case ListMove:
		lo, hi := c.OldIndex, c.Index
		if lo > hi {
			lo, hi = hi, lo
		}
		return lo <= idx && idx < hi+count
	}
	return true
}

func (ix *indexNode) onMapChange(n *Node, c MapChange) {
	n.withEval(func() {
		if c.Action == MapReset || !ix.keyValid {
			ix.evaluate(n)
			return
		}
		if !valuesEqual(c.Key, ix.curKey) {
			return
		}
		switch c.Action {
		case MapRemove:
			n.publish(nil, &KeyNotFoundError{Key: ix.curKey})
		case MapAdd, MapReplace:
			// fast path: the event already carries the value at our key
			n.publish(c.NewValue, nil)
		}
	})
}

func (ix *indexNode) teardown(n *Node) error {
	if ix.listSrc != nil {
		ix.listSrc.RemoveListChangeHandler(ix.listTok)
		ix.listSrc = nil
	}
	if ix.mapSrc != nil {
		ix.mapSrc.RemoveMapChangeHandler(ix.mapTok)
		ix.mapSrc = nil
	}
	return teardownChildren(
		[]*Node{ix.target, ix.arg},
		[]uuid.UUID{ix.targetTok, ix.argTok},
	)
}

func (ix *indexNode) children() []*Node {
	return []*Node{ix.target, ix.arg}
}

// toIndex converts a boxed value to an integer index
func toIndex(v any) (int, bool) {
	switch i := v.(type) {
	case int:
		return i, true
	case int8:
		return int(i), true
	case int16:
		return int(i), true
	case int32:
		return int(i), true
	case int64:
		return int(i), true
	case uint:
		return int(i), true
	case uint8:
		return int(i), true
	case uint16:
		return int(i), true
	case uint32:
		return int(i), true
	case uint64:
		return int(i), true
	}
	return 0, false
}
