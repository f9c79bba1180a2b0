package active

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// Options is the policy bag shared by every node built under it. It is
// mutable until the first node is built, then frozen: later mutation returns
// ErrOptionsFrozen. Nodes reference Options, they never copy it, so two nodes
// are only interchangeable when built under the same Options instance.
type Options struct {
	mu     sync.RWMutex
	frozen atomic.Bool

	disposeConstructed   bool
	disposeStaticResults bool
	preferAsyncDisposal  bool
	blockOnAsyncDisposal bool
	listenListChanges    bool
	listenMapChanges     bool

	ctorRegistry   map[ctorKey]struct{}
	memberRegistry map[memberKey]struct{}
}

type ctorKey struct {
	declaring reflect.Type
	params    string
}

type memberKey struct {
	declaring reflect.Type
	name      string
}

// ErrOptionsFrozen is returned when mutating Options after first use
var ErrOptionsFrozen = fmt.Errorf("options are frozen once used to build a node")

// NewOptions returns a policy bag with container-change listening enabled
func NewOptions() *Options {
	return &Options{
		listenListChanges: true,
		listenMapChanges:  true,
		ctorRegistry:      make(map[ctorKey]struct{}),
		memberRegistry:    make(map[memberKey]struct{}),
	}
}

// defaultOptions is used when callers pass nil
var defaultOptions = NewOptions()

func normalizeOptions(o *Options) *Options {
	if o == nil {
		return defaultOptions
	}
	return o
}

func (o *Options) freeze() {
	o.frozen.Store(true)
}

// IsFrozen reports whether the options have been used to build a node
func (o *Options) IsFrozen() bool {
	return o.frozen.Load()
}

func (o *Options) set(fn func()) error {
	if o.frozen.Load() {
		return ErrOptionsFrozen
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
	return nil
}

// SetDisposeConstructedObjects controls blanket disposal of every superseded
// constructed object
func (o *Options) SetDisposeConstructedObjects(v bool) error {
	return o.set(func() { o.disposeConstructed = v })
}

// SetDisposeStaticMethodResults controls blanket disposal of superseded
// results of static members and free functions. Instance members stay opt-in
// through AddDisposableMember.
func (o *Options) SetDisposeStaticMethodResults(v bool) error {
	return o.set(func() { o.disposeStaticResults = v })
}

// SetPreferAsyncDisposal routes superseded-value disposal through a goroutine
func (o *Options) SetPreferAsyncDisposal(v bool) error {
	return o.set(func() { o.preferAsyncDisposal = v })
}

// SetBlockOnAsyncDisposal makes the mutating thread wait for async disposal
func (o *Options) SetBlockOnAsyncDisposal(v bool) error {
	return o.set(func() { o.blockOnAsyncDisposal = v })
}

// SetListenForListChanges controls subscription to list-shaped container events
func (o *Options) SetListenForListChanges(v bool) error {
	return o.set(func() { o.listenListChanges = v })
}

// SetListenForMapChanges controls subscription to map-shaped container events
func (o *Options) SetListenForMapChanges(v bool) error {
	return o.set(func() { o.listenMapChanges = v })
}

// AddDisposableConstructedType opts a (declaring type, constructor parameter
// types) pair into disposal of superseded instances
func (o *Options) AddDisposableConstructedType(declaring reflect.Type, params ...reflect.Type) error {
	return o.set(func() {
		o.ctorRegistry[ctorKey{declaring: declaring, params: typeListKey(params)}] = struct{}{}
	})
}

// AddDisposableMember opts results of the named method or getter on the
// declaring type into disposal when superseded
func (o *Options) AddDisposableMember(declaring reflect.Type, name string) error {
	return o.set(func() {
		o.memberRegistry[memberKey{declaring: declaring, name: name}] = struct{}{}
	})
}

func typeListKey(params []reflect.Type) string {
	s := ""
	for i, p := range params {
		if i > 0 {
			s += ","
		}
		if p == nil {
			s += "<nil>"
		} else {
			s += p.String()
		}
	}
	return s
}

// disposesConstructed reports whether a superseded instance of declaring,
// built with the given constructor parameter types, should be disposed
func (o *Options) disposesConstructed(declaring reflect.Type, params []reflect.Type) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.disposeConstructed {
		return true
	}
	_, ok := o.ctorRegistry[ctorKey{declaring: declaring, params: typeListKey(params)}]
	return ok
}

// disposesMember reports whether superseded results of the named member on
// declaring should be disposed. Static members (nil declaring type) follow
// the blanket static-results flag; instance members are opt-in only.
func (o *Options) disposesMember(declaring reflect.Type, name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if declaring == nil {
		return o.disposeStaticResults
	}
	_, ok := o.memberRegistry[memberKey{declaring: declaring, name: name}]
	return ok
}

func (o *Options) listensForListChanges() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.listenListChanges
}

func (o *Options) listensForMapChanges() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.listenMapChanges
}

func (o *Options) asyncDisposal() (prefer, block bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.preferAsyncDisposal, o.blockOnAsyncDisposal
}
