package store

import (
	"github.com/sdelrio0/xyflow-flow/pkg/flow"
)

// Nodes returns the current node collection. Callers must not modify it.
func (s *Store) Nodes() []flow.Node {
	return s.nodes.Get()
}

// Edges returns the current edge collection. Callers must not modify it.
func (s *Store) Edges() []flow.Edge {
	return s.edges.Get()
}

// Node looks up a node by id
func (s *Store) Node(id string) (flow.Node, bool) {
	return flow.FindNode(s.nodes.Get(), id)
}

// Edge looks up an edge by id
func (s *Store) Edge(id string) (flow.Edge, bool) {
	return flow.FindEdge(s.edges.Get(), id)
}

// SelectedNodes returns the selected nodes in collection order
func (s *Store) SelectedNodes() []flow.Node {
	return s.selected.Get()
}

// Viewport returns the current viewport
func (s *Store) Viewport() flow.Viewport {
	return s.viewport.Get()
}

// SetViewport replaces the viewport
func (s *Store) SetViewport(vp flow.Viewport) {
	s.viewport.Set(vp)
}

// ToObject snapshots the store into a document
func (s *Store) ToObject() flow.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return flow.ToObject(s.nodes.Get(), s.edges.Get(), s.viewport.Get())
}

// SetNodes replaces the node collection with the changes that turn the
// current one into nodes
func (s *Store) SetNodes(nodes []flow.Node) error {
	return s.Update(func(current []flow.Node, _ []flow.Edge) flow.ChangeSet {
		return flow.ChangeSet{Nodes: flow.DiffNodes(current, nodes)}
	})
}

// SetEdges replaces the edge collection the same way SetNodes does
func (s *Store) SetEdges(edges []flow.Edge) error {
	return s.Update(func(_ []flow.Node, current []flow.Edge) flow.ChangeSet {
		return flow.ChangeSet{Edges: flow.DiffEdges(current, edges)}
	})
}

// SetDocument moves the store onto doc and returns the changes that did it
func (s *Store) SetDocument(doc flow.Document) (flow.ChangeSet, error) {
	var cs flow.ChangeSet
	err := s.Update(func(nodes []flow.Node, edges []flow.Edge) flow.ChangeSet {
		cs = flow.ChangeSet{Nodes: flow.DiffNodes(nodes, doc.Nodes), Edges: flow.DiffEdges(edges, doc.Edges)}
		return cs
	})
	if err != nil {
		return cs, err
	}
	if doc.Viewport != (flow.Viewport{}) {
		s.SetViewport(doc.Viewport)
	}
	return cs, nil
}

// AddNodes appends nodes
func (s *Store) AddNodes(nodes ...flow.Node) error {
	changes := make([]flow.NodeChange, len(nodes))
	for i, n := range nodes {
		changes[i] = flow.NodeAddChange{Item: n}
	}
	return s.ApplyNodeChanges(changes)
}

// AddEdges appends edges
func (s *Store) AddEdges(edges ...flow.Edge) error {
	changes := make([]flow.EdgeChange, len(edges))
	for i, e := range edges {
		changes[i] = flow.EdgeAddChange{Item: e}
	}
	return s.ApplyEdgeChanges(changes)
}

// UpdateNodeData merges patch into a node's data, or replaces the data when
// replace is set. Unknown ids are ignored.
func (s *Store) UpdateNodeData(id string, patch flow.Data, replace bool) error {
	return s.Update(func(nodes []flow.Node, _ []flow.Edge) flow.ChangeSet {
		node, ok := flow.FindNode(nodes, id)
		if !ok {
			return flow.ChangeSet{}
		}
		return flow.ChangeSet{Nodes: []flow.NodeChange{flow.NodeDataChange(node, patch, replace)}}
	})
}

// SetSelection selects exactly the given node and edge ids
func (s *Store) SetSelection(nodeIDs, edgeIDs []string) error {
	return s.Update(func(nodes []flow.Node, edges []flow.Edge) flow.ChangeSet {
		return flow.ChangeSet{
			Nodes: flow.NodeSelectionChanges(nodes, idSet(nodeIDs)),
			Edges: flow.EdgeSelectionChanges(edges, idSet(edgeIDs)),
		}
	})
}

// DeleteElements removes nodes, their children and connected edges, and
// edges, honoring the deletable flags
func (s *Store) DeleteElements(nodeIDs, edgeIDs []string) (flow.Deletion, error) {
	var d flow.Deletion
	err := s.Update(func(nodes []flow.Node, edges []flow.Edge) flow.ChangeSet {
		d = flow.DeleteElements(nodes, edges, nodeIDs, edgeIDs)
		return flow.ChangeSet{Nodes: d.NodeChanges, Edges: d.EdgeChanges}
	})
	return d, err
}

// Connect adds an edge for conn unless one already exists. It reports
// whether an edge was added.
func (s *Store) Connect(conn flow.Connection) (bool, error) {
	var added bool
	err := s.Update(func(_ []flow.Node, edges []flow.Edge) flow.ChangeSet {
		changes := flow.DiffEdges(edges, flow.Connect(conn, edges))
		added = len(changes) > 0
		return flow.ChangeSet{Edges: changes}
	})
	return added && err == nil, err
}

// Reconnect moves an existing edge onto conn
func (s *Store) Reconnect(edgeID string, conn flow.Connection) (bool, error) {
	var moved bool
	err := s.Update(func(_ []flow.Node, edges []flow.Edge) flow.ChangeSet {
		old, ok := flow.FindEdge(edges, edgeID)
		if !ok {
			return flow.ChangeSet{}
		}
		changes := flow.DiffEdges(edges, flow.ReconnectEdge(old, conn, edges))
		moved = len(changes) > 0
		return flow.ChangeSet{Edges: changes}
	})
	return moved && err == nil, err
}

// HandleConnections returns the connections attached to one handle of a
// node. typ selects whether the node is the edge's source or target.
func (s *Store) HandleConnections(nodeID, handleID string, typ flow.HandleType) []flow.HandleConnection {
	return flow.HandleConnections(nodeID, handleID, typ, s.edges.Get())
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
