package active

import (
	"sync"

	"github.com/google/uuid"
)

// In-memory observable sources implementing the notification contracts.
// These are what consumers bind live expressions to when they don't have
// their own notifier implementations.

// PropertyProvider is a dynamic property bag readable and writable by name.
// Member access and member-init prefer it over reflection when the runtime
// value implements it.
type PropertyProvider interface {
	GetProperty(name string) (any, bool)
	SetProperty(name string, value any)
}

// Observable is a thread-safe property bag with change notification
type Observable struct {
	mu       sync.RWMutex
	props    map[string]any
	handlers handlerSet[string]
}

// NewObservable creates an empty observable property bag
func NewObservable() *Observable {
	return &Observable{props: make(map[string]any)}
}

func (o *Observable) GetProperty(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.props[name]
	return v, ok
}

// SetProperty stores a property and notifies handlers when the value changed
func (o *Observable) SetProperty(name string, value any) {
	o.mu.Lock()
	old, had := o.props[name]
	o.props[name] = value
	o.mu.Unlock()
	if !had || !valuesEqual(old, value) {
		o.handlers.notify(name)
	}
}

func (o *Observable) AddPropertyChangeHandler(fn func(property string)) uuid.UUID {
	return o.handlers.add(fn)
}

func (o *Observable) RemovePropertyChangeHandler(id uuid.UUID) {
	o.handlers.remove(id)
}

// IndexReader is the read capability of an integer-indexed container
type IndexReader interface {
	At(index int) (any, error)
	Len() int
}

// KeyReader is the read capability of a key-indexed container
type KeyReader interface {
	Value(key any) (any, bool)
}

// ObservableList is a thread-safe slice announcing structural changes
type ObservableList struct {
	mu       sync.RWMutex
	items    []any
	handlers handlerSet[ListChange]
}

// NewObservableList creates a list seeded with items
func NewObservableList(items ...any) *ObservableList {
	return &ObservableList{items: append([]any(nil), items...)}
}

func (l *ObservableList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *ObservableList) At(index int) (any, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.items) {
		return nil, &KeyNotFoundError{Key: index}
	}
	return l.items[index], nil
}

// Add appends an item
func (l *ObservableList) Add(item any) {
	l.mu.Lock()
	l.items = append(l.items, item)
	index := len(l.items) - 1
	l.mu.Unlock()
	l.handlers.notify(ListChange{Action: ListAdd, Index: index, Count: 1})
}

// Insert places an item at index, shifting later elements
func (l *ObservableList) Insert(index int, item any) {
	l.mu.Lock()
	l.items = append(l.items, nil)
	copy(l.items[index+1:], l.items[index:])
	l.items[index] = item
	l.mu.Unlock()
	l.handlers.notify(ListChange{Action: ListAdd, Index: index, Count: 1})
}

// RemoveAt deletes the item at index
func (l *ObservableList) RemoveAt(index int) {
	l.mu.Lock()
	l.items = append(l.items[:index], l.items[index+1:]...)
	l.mu.Unlock()
	l.handlers.notify(ListChange{Action: ListRemove, Index: index, Count: 1})
}

// Set replaces the item at index
func (l *ObservableList) Set(index int, item any) {
	l.mu.Lock()
	l.items[index] = item
	l.mu.Unlock()
	l.handlers.notify(ListChange{Action: ListReplace, Index: index, Count: 1})
}

// Move relocates the item at from to to
func (l *ObservableList) Move(from, to int) {
	l.mu.Lock()
	item := l.items[from]
	l.items = append(l.items[:from], l.items[from+1:]...)
	l.items = append(l.items, nil)
	copy(l.items[to+1:], l.items[to:])
	l.items[to] = item
	l.mu.Unlock()
	l.handlers.notify(ListChange{Action: ListMove, Index: to, OldIndex: from, Count: 1})
}

// Reset replaces the whole contents
func (l *ObservableList) Reset(items ...any) {
	l.mu.Lock()
	l.items = append([]any(nil), items...)
	l.mu.Unlock()
	l.handlers.notify(ListChange{Action: ListReset})
}

func (l *ObservableList) AddListChangeHandler(fn func(ListChange)) uuid.UUID {
	return l.handlers.add(fn)
}

func (l *ObservableList) RemoveListChangeHandler(id uuid.UUID) {
	l.handlers.remove(id)
}

// ObservableMap is a thread-safe key-value container announcing changes
type ObservableMap struct {
	mu       sync.RWMutex
	entries  map[any]any
	handlers handlerSet[MapChange]
}

// NewObservableMap creates an empty observable map
func NewObservableMap() *ObservableMap {
	return &ObservableMap{entries: make(map[any]any)}
}

func (m *ObservableMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *ObservableMap) Value(key any) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Set adds or replaces a key
func (m *ObservableMap) Set(key, value any) {
	m.mu.Lock()
	old, had := m.entries[key]
	m.entries[key] = value
	m.mu.Unlock()
	if had {
		m.handlers.notify(MapChange{Action: MapReplace, Key: key, NewValue: value, OldValue: old})
	} else {
		m.handlers.notify(MapChange{Action: MapAdd, Key: key, NewValue: value})
	}
}

// Delete removes a key if present
func (m *ObservableMap) Delete(key any) {
	m.mu.Lock()
	old, had := m.entries[key]
	delete(m.entries, key)
	m.mu.Unlock()
	if had {
		m.handlers.notify(MapChange{Action: MapRemove, Key: key, OldValue: old})
	}
}

// Reset replaces the whole contents
func (m *ObservableMap) Reset(entries map[any]any) {
	m.mu.Lock()
	m.entries = make(map[any]any, len(entries))
	for k, v := range entries {
		m.entries[k] = v
	}
	m.mu.Unlock()
	m.handlers.notify(MapChange{Action: MapReset})
}

func (m *ObservableMap) AddMapChangeHandler(fn func(MapChange)) uuid.UUID {
	return m.handlers.add(fn)
}

func (m *ObservableMap) RemoveMapChangeHandler(id uuid.UUID) {
	m.handlers.remove(id)
}
