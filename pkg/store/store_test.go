package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
)

func sampleDocument() flow.Document {
	return flow.Document{
		Nodes: []flow.Node{
			{ID: "1", Position: flow.XYPosition{X: 0, Y: 0}, Data: flow.Data{"label": "node 1"}},
			{ID: "2", Position: flow.XYPosition{X: 100, Y: 100}, Data: flow.Data{"label": "node 2"}},
			{ID: "3", ParentID: "2", Data: flow.Data{"label": "child"}},
		},
		Edges: []flow.Edge{
			{ID: "e1-2", Source: "1", Target: "2"},
			{ID: "e2-3", Source: "2", Target: "3"},
		},
	}
}

func nodeIDs(nodes []flow.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func edgeIDs(edges []flow.Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.ID
	}
	return out
}

func TestStore_Apply(t *testing.T) {
	s := New(sampleDocument())

	var nodeBatches [][]flow.NodeChange
	s.OnNodesChange(func(changes []flow.NodeChange) {
		nodeBatches = append(nodeBatches, changes)
	})
	var edgeBatches int
	s.OnEdgesChange(func([]flow.EdgeChange) { edgeBatches++ })

	err := s.Apply(flow.ChangeSet{
		Nodes: []flow.NodeChange{
			flow.PositionChange{ID: "1", Position: &flow.XYPosition{X: 5, Y: 6}},
			flow.SelectChange{ID: "2", Selected: true},
		},
	})
	require.NoError(t, err)

	n1, ok := s.Node("1")
	require.True(t, ok)
	assert.Equal(t, flow.XYPosition{X: 5, Y: 6}, n1.Position)
	assert.Equal(t, []string{"2"}, nodeIDs(s.SelectedNodes()))

	require.Len(t, nodeBatches, 1)
	assert.Len(t, nodeBatches[0], 2)
	assert.Zero(t, edgeBatches, "edge hooks only fire for edge changes")

	require.NoError(t, s.ApplyEdgeChanges([]flow.EdgeChange{flow.RemoveChange{ID: "e1-2"}}))
	assert.Equal(t, []string{"e2-3"}, edgeIDs(s.Edges()))
	assert.Equal(t, 1, edgeBatches)
}

func TestStore_NotifiesOncePerBatch(t *testing.T) {
	s := New(sampleDocument())

	var nodeCalls, edgeCalls int
	s.SubscribeNodes(func([]flow.Node) { nodeCalls++ })
	s.SubscribeEdges(func([]flow.Edge) { edgeCalls++ })

	require.NoError(t, s.Apply(flow.ChangeSet{
		Nodes: []flow.NodeChange{
			flow.SelectChange{ID: "1", Selected: true},
			flow.SelectChange{ID: "2", Selected: true},
			flow.RemoveChange{ID: "3"},
		},
		Edges: []flow.EdgeChange{flow.SelectChange{ID: "e1-2", Selected: true}},
	}))

	assert.Equal(t, 1, nodeCalls)
	assert.Equal(t, 1, edgeCalls)

	// Empty batches are not applied at all
	require.NoError(t, s.Apply(flow.ChangeSet{}))
	assert.Equal(t, 1, nodeCalls)
}

func TestStore_SubscribeNodes(t *testing.T) {
	s := New(sampleDocument())

	var seen []string
	s.SubscribeNodes(func(nodes []flow.Node) { seen = nodeIDs(nodes) })
	require.NoError(t, s.AddNodes(flow.Node{ID: "4"}))

	assert.Equal(t, []string{"1", "2", "3", "4"}, seen)
}

func TestStore_SetNodes(t *testing.T) {
	s := New(sampleDocument())

	var applied []flow.NodeChange
	s.OnNodesChange(func(changes []flow.NodeChange) { applied = changes })

	next := []flow.Node{
		{ID: "2", Position: flow.XYPosition{X: 100, Y: 100}, Data: flow.Data{"label": "node 2"}},
		{ID: "4", Data: flow.Data{"label": "new"}},
	}
	require.NoError(t, s.SetNodes(next))

	assert.Equal(t, next, s.Nodes())
	assert.Equal(t, []flow.NodeChange{
		flow.RemoveChange{ID: "1"},
		flow.RemoveChange{ID: "3"},
		flow.NodeAddChange{Item: next[1]},
	}, applied)
}

func TestStore_SetDocument(t *testing.T) {
	s := New(sampleDocument())

	doc := sampleDocument()
	doc.Edges = doc.Edges[:1]
	doc.Viewport = flow.Viewport{X: 10, Y: 20, Zoom: 2}

	cs, err := s.SetDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, []flow.EdgeChange{flow.RemoveChange{ID: "e2-3"}}, cs.Edges)
	assert.Empty(t, cs.Nodes)

	got := s.ToObject()
	assert.Equal(t, doc, got)
}

func TestStore_UpdateNodeData(t *testing.T) {
	s := New(sampleDocument())

	require.NoError(t, s.UpdateNodeData("1", flow.Data{"color": "red"}, false))
	n, _ := s.Node("1")
	assert.Equal(t, flow.Data{"label": "node 1", "color": "red"}, n.Data)

	require.NoError(t, s.UpdateNodeData("1", flow.Data{"label": "only"}, true))
	n, _ = s.Node("1")
	assert.Equal(t, flow.Data{"label": "only"}, n.Data)

	require.NoError(t, s.UpdateNodeData("missing", flow.Data{"x": 1}, false))
}

func TestStore_DeleteElements(t *testing.T) {
	s := New(sampleDocument())

	d, err := s.DeleteElements([]string{"2"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "3"}, nodeIDs(d.DeletedNodes))
	assert.Equal(t, []string{"1"}, nodeIDs(s.Nodes()))
	assert.Empty(t, s.Edges())
}

func TestStore_Connect(t *testing.T) {
	s := New(sampleDocument())

	added, err := s.Connect(flow.Connection{Source: "1", Target: "3"})
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"e1-2", "e2-3", "xy-edge__1-3"}, edgeIDs(s.Edges()))

	added, err = s.Connect(flow.Connection{Source: "1", Target: "2"})
	require.NoError(t, err)
	assert.False(t, added, "existing connection")

	moved, err := s.Reconnect("e1-2", flow.Connection{Source: "3", Target: "1"})
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"xy-edge__3-1", "e2-3", "xy-edge__1-3"}, edgeIDs(s.Edges()))

	moved, err = s.Reconnect("nope", flow.Connection{Source: "3", Target: "1"})
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestStore_SetSelection(t *testing.T) {
	s := New(sampleDocument())

	require.NoError(t, s.SetSelection([]string{"1", "3"}, []string{"e2-3"}))
	assert.Equal(t, []string{"1", "3"}, nodeIDs(s.SelectedNodes()))

	require.NoError(t, s.SetSelection([]string{"2"}, nil))
	assert.Equal(t, []string{"2"}, nodeIDs(s.SelectedNodes()))
	e, _ := s.Edge("e2-3")
	assert.False(t, e.Selected)
}

func TestStore_Viewport(t *testing.T) {
	s := New(flow.Document{})
	assert.Equal(t, flow.DefaultViewport, s.Viewport())

	var got flow.Viewport
	s.SubscribeViewport(func(vp flow.Viewport) { got = vp })
	s.SetViewport(flow.Viewport{X: 1, Y: 2, Zoom: 0.5})
	assert.Equal(t, flow.Viewport{X: 1, Y: 2, Zoom: 0.5}, got)
}

func TestStore_DoesNotShareInput(t *testing.T) {
	doc := sampleDocument()
	s := New(doc)

	require.NoError(t, s.ApplyNodeChanges([]flow.NodeChange{flow.SelectChange{ID: "1", Selected: true}}))
	assert.False(t, doc.Nodes[0].Selected)
}

func TestStore_Async(t *testing.T) {
	s := New(flow.Document{}, WithAsync())
	defer s.Close()

	var mu sync.Mutex
	var hooked int
	s.OnNodesChange(func(changes []flow.NodeChange) {
		mu.Lock()
		hooked += len(changes)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-s.Submit(flow.ChangeSet{Nodes: []flow.NodeChange{
				flow.NodeAddChange{Item: flow.Node{ID: fmt.Sprintf("n%d", i)}},
			}})
		}(i)
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))

	assert.Len(t, s.Nodes(), 40)
	mu.Lock()
	assert.Equal(t, 40, hooked)
	mu.Unlock()

	// Apply waits for the writer
	require.NoError(t, s.ApplyNodeChanges([]flow.NodeChange{flow.RemoveChange{ID: "n0"}}))
	_, ok := s.Node("n0")
	assert.False(t, ok)
}

func TestStore_ConcurrentUpdateNodeData(t *testing.T) {
	for _, tt := range []struct {
		name string
		opts []Option
	}{
		{name: "sync"},
		{name: "async", opts: []Option{WithAsync()}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := New(sampleDocument(), tt.opts...)
			defer s.Close()

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.UpdateNodeData("1", flow.Data{fmt.Sprintf("k%d", i): i}, false))
				}(i)
			}
			wg.Wait()

			n, ok := s.Node("1")
			require.True(t, ok)
			assert.Len(t, n.Data, 21)
			for i := 0; i < 20; i++ {
				assert.Equal(t, i, n.Data[fmt.Sprintf("k%d", i)])
			}
		})
	}
}

func TestStore_ConcurrentSetNodesAndAdds(t *testing.T) {
	s := New(flow.Document{}, WithAsync())
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AddNodes(flow.Node{ID: fmt.Sprintf("a%d", i)}))
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.SetSelection([]string{"a0"}, nil))
		}()
	}
	wg.Wait()

	assert.Len(t, s.Nodes(), 10)
}

func TestStore_UpdateSeesPreviousWrites(t *testing.T) {
	s := New(flow.Document{}, WithAsync())
	defer s.Close()

	first := s.Submit(flow.ChangeSet{Nodes: []flow.NodeChange{flow.NodeAddChange{Item: flow.Node{ID: "x"}}}})
	var seen []string
	require.NoError(t, s.Update(func(nodes []flow.Node, _ []flow.Edge) flow.ChangeSet {
		seen = nodeIDs(nodes)
		return flow.ChangeSet{}
	}))
	require.NoError(t, <-first)
	assert.Equal(t, []string{"x"}, seen)
}

func TestStore_FailedBatchKeepsStoreUsable(t *testing.T) {
	for _, tt := range []struct {
		name string
		opts []Option
	}{
		{name: "sync"},
		{name: "async", opts: []Option{WithAsync()}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := New(sampleDocument(), tt.opts...)

			err := s.Update(func([]flow.Node, []flow.Edge) flow.ChangeSet {
				panic("broken producer")
			})
			require.Error(t, err)
			assert.Equal(t, []string{"1", "2", "3"}, nodeIDs(s.Nodes()))

			// Nil changes are skipped rather than failing the batch
			require.NoError(t, s.ApplyNodeChanges([]flow.NodeChange{nil, flow.RemoveChange{ID: "1"}}))
			require.NoError(t, s.AddNodes(flow.Node{ID: "4"}))
			assert.Equal(t, []string{"2", "3", "4"}, nodeIDs(s.Nodes()))

			closed := make(chan struct{})
			go func() {
				s.Close()
				close(closed)
			}()
			select {
			case <-closed:
			case <-time.After(time.Second):
				t.Fatal("Close blocked after a failed batch")
			}
		})
	}
}

func TestStore_HookPanicDoesNotFailBatch(t *testing.T) {
	s := New(sampleDocument())

	var notified, laterHook int
	s.SubscribeNodes(func([]flow.Node) { notified++ })
	s.OnNodesChange(func([]flow.NodeChange) { panic("hook") })
	s.OnNodesChange(func([]flow.NodeChange) { laterHook++ })

	require.NoError(t, s.AddNodes(flow.Node{ID: "4"}))
	_, ok := s.Node("4")
	assert.True(t, ok)
	assert.Equal(t, 1, notified)
	assert.Equal(t, 1, laterHook)
}

func TestStore_HandleConnections(t *testing.T) {
	s := New(flow.Document{
		Nodes: []flow.Node{{ID: "1"}, {ID: "2"}},
		Edges: []flow.Edge{
			{ID: "a", Source: "1", Target: "2", SourceHandle: "out"},
			{ID: "b", Source: "1", Target: "2", SourceHandle: "alt"},
		},
	})

	got := s.HandleConnections("1", "out", flow.HandleSource)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].EdgeID)
	assert.Len(t, s.HandleConnections("2", "", flow.HandleTarget), 2)
}
