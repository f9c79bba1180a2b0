package active

import (
	"sort"
	"sync"
)

// Extension provides hooks into the node lifecycle
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension invocation order (lower = earlier)
	Order() int

	// Init is called when the extension is registered
	Init() error

	// OnNodeCreated fires when a node is first inserted into the cache
	OnNodeCreated(n *Node)

	// OnNodeInitialized fires after a node's one-time initialization
	OnNodeInitialized(n *Node, err error)

	// OnNodeFault fires whenever a node transitions to a fault
	OnNodeFault(n *Node, fault error)

	// OnNodeDisposed fires when a node's refcount reaches zero
	OnNodeDisposed(n *Node)

	// OnCleanupError handles disposal failures
	// Returns true if the error was handled, false to use default behavior
	OnCleanupError(err *CleanupError) bool
}

// CleanupError contains information about a disposal failure
type CleanupError struct {
	Node    *Node
	Err     error
	Context string // "superseded", "teardown", or "construction"
}

func (e *CleanupError) Error() string {
	return "cleanup during " + e.Context + ": " + e.Err.Error()
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init() error {
	return nil
}

func (e *BaseExtension) OnNodeCreated(n *Node) {
}

func (e *BaseExtension) OnNodeInitialized(n *Node, err error) {
}

func (e *BaseExtension) OnNodeFault(n *Node, fault error) {
}

func (e *BaseExtension) OnNodeDisposed(n *Node) {
}

func (e *BaseExtension) OnCleanupError(err *CleanupError) bool {
	return false
}

var extRegistry struct {
	mu   sync.RWMutex
	exts []Extension
}

// UseExtension registers a lifecycle extension process-wide
func UseExtension(ext Extension) error {
	extRegistry.mu.Lock()
	extRegistry.exts = append(extRegistry.exts, ext)
	sort.SliceStable(extRegistry.exts, func(i, j int) bool {
		return extRegistry.exts[i].Order() < extRegistry.exts[j].Order()
	})
	extRegistry.mu.Unlock()

	return ext.Init()
}

// RemoveExtension unregisters a previously registered extension
func RemoveExtension(ext Extension) {
	extRegistry.mu.Lock()
	defer extRegistry.mu.Unlock()
	for i, e := range extRegistry.exts {
		if e == ext {
			extRegistry.exts = append(extRegistry.exts[:i], extRegistry.exts[i+1:]...)
			return
		}
	}
}

func currentExtensions() []Extension {
	extRegistry.mu.RLock()
	defer extRegistry.mu.RUnlock()
	exts := make([]Extension, len(extRegistry.exts))
	copy(exts, extRegistry.exts)
	return exts
}

func raiseCleanupError(err *CleanupError) {
	for _, ext := range currentExtensions() {
		if ext.OnCleanupError(err) {
			return
		}
	}
}
