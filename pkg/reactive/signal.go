package reactive

import (
	"sync"
	"sync/atomic"
)

// debugLog is set by debug.EnableLogging
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Listener is called with the new value after a state changes
type Listener[T any] func(T)

// Signal is the interface for reactive values
type Signal[T any] interface {
	Get() T
	Set(T)
	Subscribe(fn Listener[T]) (unsubscribe func())
}

// notifier is anything a batch can flush
type notifier interface {
	notify()
}

// State represents a reactive state value
type State[T any] struct {
	value T
	mu    sync.RWMutex

	listeners   map[uint64]Listener[T]
	nextID      uint64
	listenersMu sync.RWMutex
}

// NewState creates a new reactive state
func NewState[T any](initial T) *State[T] {
	return &State[T]{
		value:     initial,
		listeners: make(map[uint64]Listener[T]),
	}
}

// Get returns the current value
func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the value and notifies listeners
func (s *State[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	if debugLog != nil {
		debugLog("[State] Set called")
	}
	notifyOrBatch(s)
}

// Update atomically reads, modifies, and writes the value
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	s.value = fn(s.value)
	s.mu.Unlock()

	if debugLog != nil {
		debugLog("[State] Update called")
	}
	notifyOrBatch(s)
}

// SetBatched updates the value and defers notification to b
func (s *State[T]) SetBatched(b *Batch, value T) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	b.Add(s)
}

// Subscribe registers fn and returns a function removing it again
func (s *State[T]) Subscribe(fn Listener[T]) func() {
	if fn == nil {
		return func() {}
	}

	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	count := len(s.listeners)
	s.listenersMu.Unlock()

	if debugLog != nil {
		debugLog("[State] Subscribed listener", id, "total:", count)
	}

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// ListenerCount returns the number of registered listeners
func (s *State[T]) ListenerCount() int {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	return len(s.listeners)
}

// notify calls every listener with the current value. Listeners run
// outside the locks so they may read or write the state again.
func (s *State[T]) notify() {
	s.listenersMu.RLock()
	fns := make([]Listener[T], 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.RUnlock()

	value := s.Get()
	for _, fn := range fns {
		fn(value)
	}
}

// Computed represents a memoized value derived from other states
type Computed[T any] struct {
	compute func() T
	value   T
	valid   bool
	mu      sync.Mutex
}

// Dependency is a value a Computed can be invalidated by. *State
// implements it.
type Dependency interface {
	invalidateOn(fn func()) func()
}

// NewComputed creates a computed value that is invalidated whenever one of
// deps changes
func NewComputed[T any](compute func() T, deps ...Dependency) *Computed[T] {
	c := &Computed[T]{compute: compute}
	for _, d := range deps {
		d.invalidateOn(c.Invalidate)
	}
	return c
}

// invalidateOn lets a state act as a Computed dependency
func (s *State[T]) invalidateOn(fn func()) func() {
	return s.Subscribe(func(T) { fn() })
}

// Get returns the computed value, recalculating if necessary
func (c *Computed[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.valid {
		c.value = c.compute()
		c.valid = true
	}
	return c.value
}

// Invalidate marks the computed value as needing recalculation
func (c *Computed[T]) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// batchContext holds the current batch state
var batchContext atomic.Pointer[Batch]

// Batch collects state changes and notifies each changed state once when
// the batch commits
type Batch struct {
	dirty  []notifier
	seen   map[notifier]struct{}
	mu     sync.Mutex
	active bool
}

// NewBatch creates a new batch context
func NewBatch() *Batch {
	return &Batch{
		seen:   make(map[notifier]struct{}),
		active: true,
	}
}

// Add queues a state for notification at commit
func (b *Batch) Add(n notifier) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return
	}
	if _, ok := b.seen[n]; ok {
		return
	}
	b.seen[n] = struct{}{}
	b.dirty = append(b.dirty, n)
}

// Commit notifies every state changed during the batch, in first-change
// order
func (b *Batch) Commit() {
	b.mu.Lock()
	b.active = false
	dirty := b.dirty
	b.dirty = nil
	b.seen = nil
	b.mu.Unlock()

	if debugLog != nil {
		debugLog("[Batch] Committing", len(dirty), "states")
	}
	for _, n := range dirty {
		n.notify()
	}
}

// RunBatch executes fn within a batch context. Nested batches fold into
// the outermost one.
func RunBatch(fn func()) {
	if current := batchContext.Load(); current != nil && current.active {
		fn()
		return
	}

	batch := NewBatch()
	oldBatch := batchContext.Swap(batch)

	defer func() {
		batchContext.Store(oldBatch)
		batch.Commit()
	}()

	fn()
}

// notifyOrBatch notifies immediately or defers to the current batch
func notifyOrBatch(n notifier) {
	if batch := batchContext.Load(); batch != nil && batch.active {
		if debugLog != nil {
			debugLog("[State] Adding state to batch")
		}
		batch.Add(n)
		return
	}
	n.notify()
}
