package active

import (
	"sync"

	"github.com/google/uuid"
)

// Change-notification contracts the engine subscribes to opportunistically.
// Sources are duck-typed: at subscribe time the engine checks which of these
// a runtime value implements and wires only what it finds.

// PropertyChangeNotifier is implemented by values that announce named
// property changes. An empty property name means "anything may have changed".
type PropertyChangeNotifier interface {
	AddPropertyChangeHandler(fn func(property string)) uuid.UUID
	RemovePropertyChangeHandler(id uuid.UUID)
}

// ListAction tags a structural list change
type ListAction string

const (
	ListAdd     ListAction = "add"
	ListRemove  ListAction = "remove"
	ListReplace ListAction = "replace"
	ListMove    ListAction = "move"
	ListReset   ListAction = "reset"
)

// ListChange describes one structural mutation of an integer-indexed
// container. Index is where the change landed; OldIndex is only meaningful
// for moves; Count is the number of affected elements.
type ListChange struct {
	Action   ListAction
	Index    int
	OldIndex int
	Count    int
}

// ListChangeNotifier is implemented by integer-indexed containers that
// announce structural changes
type ListChangeNotifier interface {
	AddListChangeHandler(fn func(ListChange)) uuid.UUID
	RemoveListChangeHandler(id uuid.UUID)
}

// MapAction tags a keyed container change
type MapAction string

const (
	MapAdd     MapAction = "add"
	MapReplace MapAction = "replace"
	MapRemove  MapAction = "remove"
	MapReset   MapAction = "reset"
)

// MapChange describes one mutation of a key-indexed container
type MapChange struct {
	Action   MapAction
	Key      any
	NewValue any
	OldValue any
}

// MapChangeNotifier is implemented by key-indexed containers that announce
// structural changes
type MapChangeNotifier interface {
	AddMapChangeHandler(fn func(MapChange)) uuid.UUID
	RemoveMapChangeHandler(id uuid.UUID)
}

// handlerSet is the shared observer-list mechanic: adds and removes are
// guarded by a lock, dispatch iterates a snapshot taken lazily under the same
// lock, so a handler firing concurrently with subscribe/unsubscribe neither
// blocks nor corrupts the pass.
type handlerSet[T any] struct {
	mu       sync.Mutex
	handlers map[uuid.UUID]func(T)
	snapshot []func(T)
}

func (s *handlerSet[T]) add(fn func(T)) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[uuid.UUID]func(T))
	}
	id := uuid.New()
	s.handlers[id] = fn
	s.snapshot = nil
	return id
}

func (s *handlerSet[T]) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, id)
	s.snapshot = nil
}

func (s *handlerSet[T]) snap() []func(T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil && len(s.handlers) > 0 {
		s.snapshot = make([]func(T), 0, len(s.handlers))
		for _, fn := range s.handlers {
			s.snapshot = append(s.snapshot, fn)
		}
	}
	return s.snapshot
}

// notify fans an event out to the current snapshot, outside any lock
func (s *handlerSet[T]) notify(event T) {
	for _, fn := range s.snap() {
		fn(event)
	}
}

func (s *handlerSet[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}
