// Package store holds a flow document and mutates it only through change
// reconciliation.
package store

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
	"github.com/sdelrio0/xyflow-flow/pkg/reactive"
	"github.com/sdelrio0/xyflow-flow/pkg/scheduler"
)

// NodesChangeHandler receives every node batch applied to the store
type NodesChangeHandler func(changes []flow.NodeChange)

// EdgesChangeHandler receives every edge batch applied to the store
type EdgesChangeHandler func(changes []flow.EdgeChange)

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger. Stores are silent by default.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAsync serializes writes through a scheduler goroutine. Close must be
// called to stop it.
func WithAsync() Option {
	return func(s *Store) {
		s.async = true
	}
}

// Producer builds a change set from the current collections. It runs on
// the write path, so no other batch lands between the read and the apply.
type Producer func(nodes []flow.Node, edges []flow.Edge) flow.ChangeSet

// Store owns a flow document
type Store struct {
	// writeMu serializes sync-mode writers from read to commit
	writeMu  sync.Mutex
	mu       sync.Mutex
	nodes    *reactive.State[[]flow.Node]
	edges    *reactive.State[[]flow.Edge]
	viewport *reactive.State[flow.Viewport]
	selected *reactive.Computed[[]flow.Node]

	hooksMu sync.RWMutex
	onNodes []NodesChangeHandler
	onEdges []EdgesChangeHandler

	async  bool
	sched  *scheduler.Scheduler
	logger *log.Logger
}

// New creates a store holding doc
func New(doc flow.Document, opts ...Option) *Store {
	vp := doc.Viewport
	if vp == (flow.Viewport{}) {
		vp = flow.DefaultViewport
	}

	s := &Store{
		nodes:    reactive.NewState(append([]flow.Node(nil), doc.Nodes...)),
		edges:    reactive.NewState(append([]flow.Edge(nil), doc.Edges...)),
		viewport: reactive.NewState(vp),
		logger:   log.New(io.Discard),
	}
	s.selected = reactive.NewComputed(func() []flow.Node {
		var out []flow.Node
		for _, n := range s.nodes.Get() {
			if n.Selected {
				out = append(out, n)
			}
		}
		return out
	}, s.nodes)

	for _, opt := range opts {
		opt(s)
	}

	if s.async {
		s.sched = scheduler.NewScheduler(s.commit)
		s.sched.SetErrorHandler(func(cs flow.ChangeSet, err interface{}) bool {
			s.logger.Error("[Store] apply failed", "changes", cs.Len(), "err", err)
			return true
		})
		s.sched.Start()
	}
	return s
}

// Close stops the async writer, applying what is already queued
func (s *Store) Close() {
	if s.sched != nil {
		s.sched.Stop()
	}
}

// OnNodesChange registers a handler for applied node batches
func (s *Store) OnNodesChange(fn NodesChangeHandler) {
	s.hooksMu.Lock()
	s.onNodes = append(s.onNodes, fn)
	s.hooksMu.Unlock()
}

// OnEdgesChange registers a handler for applied edge batches
func (s *Store) OnEdgesChange(fn EdgesChangeHandler) {
	s.hooksMu.Lock()
	s.onEdges = append(s.onEdges, fn)
	s.hooksMu.Unlock()
}

// SubscribeNodes calls fn with the node collection after every change
func (s *Store) SubscribeNodes(fn func([]flow.Node)) func() {
	return s.nodes.Subscribe(fn)
}

// SubscribeEdges calls fn with the edge collection after every change
func (s *Store) SubscribeEdges(fn func([]flow.Edge)) func() {
	return s.edges.Subscribe(fn)
}

// SubscribeViewport calls fn after every viewport change
func (s *Store) SubscribeViewport(fn func(flow.Viewport)) func() {
	return s.viewport.Subscribe(fn)
}

// Apply reconciles cs into the store. In async mode it waits until the
// writer has applied the batch.
func (s *Store) Apply(cs flow.ChangeSet) error {
	return <-s.Submit(cs)
}

// Submit queues cs and returns a channel closed once it has been applied.
// In sync mode the batch is applied before Submit returns.
func (s *Store) Submit(cs flow.ChangeSet) <-chan error {
	if cs.Empty() {
		return done(nil)
	}
	if s.sched != nil {
		return s.sched.Enqueue(cs).Done()
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return done(s.commitSync(func() flow.ChangeSet { return cs }))
}

// Update applies the change set produce builds from the current nodes and
// edges. Concurrent updates compose: each one sees the result of the
// previous.
func (s *Store) Update(produce Producer) error {
	if s.sched != nil {
		return <-s.sched.EnqueueFunc(func() flow.ChangeSet {
			return produce(s.nodes.Get(), s.edges.Get())
		}).Done()
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.commitSync(func() flow.ChangeSet {
		return produce(s.nodes.Get(), s.edges.Get())
	})
}

func done(err error) <-chan error {
	ch := make(chan error, 1)
	if err != nil {
		ch <- err
	}
	close(ch)
	return ch
}

// Flush waits for every submitted batch to be applied
func (s *Store) Flush(ctx context.Context) error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Flush(ctx)
}

// ApplyNodeChanges reconciles a node batch
func (s *Store) ApplyNodeChanges(changes []flow.NodeChange) error {
	return s.Apply(flow.ChangeSet{Nodes: changes})
}

// ApplyEdgeChanges reconciles an edge batch
func (s *Store) ApplyEdgeChanges(changes []flow.EdgeChange) error {
	return s.Apply(flow.ChangeSet{Edges: changes})
}

// commitSync builds and commits a batch on the caller's goroutine and turns
// a panic into an error, like the scheduler does for async stores
func (s *Store) commitSync(produce func() flow.ChangeSet) (err error) {
	var cs flow.ChangeSet
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[Store] apply failed", "changes", cs.Len(), "err", r)
			err = fmt.Errorf("store: %v", r)
		}
	}()
	cs = produce()
	if cs.Empty() {
		return nil
	}
	s.commit(cs)
	return nil
}

// commit is the single write path. Listeners are notified once per batch,
// then the hooks run.
func (s *Store) commit(cs flow.ChangeSet) {
	b := s.reconcile(cs)
	s.logger.Debug("[Store] applied", "nodes", len(cs.Nodes), "edges", len(cs.Edges))
	b.Commit()

	s.hooksMu.RLock()
	onNodes, onEdges := s.onNodes, s.onEdges
	s.hooksMu.RUnlock()

	if len(cs.Nodes) > 0 {
		for _, fn := range onNodes {
			s.runHook(func() { fn(cs.Nodes) })
		}
	}
	if len(cs.Edges) > 0 {
		for _, fn := range onEdges {
			s.runHook(func() { fn(cs.Edges) })
		}
	}
}

// reconcile computes both collections before setting either, so a panic
// leaves the store untouched
func (s *Store) reconcile(cs flow.ChangeSet) *reactive.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes, edges := s.nodes.Get(), s.edges.Get()
	if len(cs.Nodes) > 0 {
		nodes = flow.ApplyNodeChanges(cs.Nodes, nodes)
	}
	if len(cs.Edges) > 0 {
		edges = flow.ApplyEdgeChanges(cs.Edges, edges)
	}

	b := reactive.NewBatch()
	if len(cs.Nodes) > 0 {
		s.nodes.SetBatched(b, nodes)
	}
	if len(cs.Edges) > 0 {
		s.edges.SetBatched(b, edges)
	}
	return b
}

// runHook calls a change hook. The batch is already applied, so a failing
// hook is logged and does not fail it.
func (s *Store) runHook(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[Store] change hook failed", "err", r)
		}
	}()
	fn()
}
