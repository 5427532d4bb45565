package flow

import "fmt"

// EdgeID returns the id AddEdge gives to an edge created from conn
func EdgeID(conn Connection) string {
	return fmt.Sprintf("xy-edge__%s%s-%s%s", conn.Source, conn.SourceHandle, conn.Target, conn.TargetHandle)
}

// EdgeFromConnection builds a default edge for conn
func EdgeFromConnection(conn Connection) Edge {
	return Edge{
		ID:           EdgeID(conn),
		Source:       conn.Source,
		Target:       conn.Target,
		SourceHandle: conn.SourceHandle,
		TargetHandle: conn.TargetHandle,
	}
}

// AddEdge appends edge unless it is invalid (missing source or target) or an
// edge between the same handles already exists. An empty id is filled from
// the connection.
func AddEdge(edge Edge, edges []Edge) []Edge {
	if edge.Source == "" || edge.Target == "" {
		return edges
	}
	if edge.ID == "" {
		edge.ID = EdgeID(connectionOf(edge))
	}
	if connectionExists(edge, edges) {
		return edges
	}
	return ApplyEdgeChanges([]EdgeChange{EdgeAddChange{Item: edge}}, edges)
}

// Connect is AddEdge for a bare connection
func Connect(conn Connection, edges []Edge) []Edge {
	return AddEdge(EdgeFromConnection(conn), edges)
}

// ReconnectEdge moves old onto the handles of conn, keeping its slot and
// attributes. The reconnected edge gets a fresh id. Nothing happens when old
// is not in edges, conn is invalid, or the new connection already exists.
func ReconnectEdge(old Edge, conn Connection, edges []Edge) []Edge {
	if conn.Source == "" || conn.Target == "" {
		return edges
	}
	found := false
	for _, e := range edges {
		if e.ID == old.ID {
			found = true
			break
		}
	}
	if !found {
		return edges
	}

	next := old
	next.ID = EdgeID(conn)
	next.Source = conn.Source
	next.Target = conn.Target
	next.SourceHandle = conn.SourceHandle
	next.TargetHandle = conn.TargetHandle
	if next.ID != old.ID && connectionExists(next, edges) {
		return edges
	}

	return ApplyEdgeChanges([]EdgeChange{EdgeReplaceChange{ID: old.ID, Item: next}}, edges)
}

func connectionOf(e Edge) Connection {
	return Connection{Source: e.Source, Target: e.Target, SourceHandle: e.SourceHandle, TargetHandle: e.TargetHandle}
}

func connectionExists(edge Edge, edges []Edge) bool {
	for _, e := range edges {
		if e.Source == edge.Source && e.Target == edge.Target &&
			e.SourceHandle == edge.SourceHandle && e.TargetHandle == edge.TargetHandle {
			return true
		}
	}
	return false
}

// ConnectedEdges returns the edges touching any of nodes, in edge order
func ConnectedEdges(nodes []Node, edges []Edge) []Edge {
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = struct{}{}
	}
	var out []Edge
	for _, e := range edges {
		_, src := ids[e.Source]
		_, tgt := ids[e.Target]
		if src || tgt {
			out = append(out, e)
		}
	}
	return out
}

// HandleConnections returns the connections on one handle of a node, in edge
// order. typ says whether the node is the source or the target side. An empty
// handleID matches edges without a handle on that side.
func HandleConnections(nodeID, handleID string, typ HandleType, edges []Edge) []HandleConnection {
	var out []HandleConnection
	for _, e := range edges {
		var node, handle string
		switch typ {
		case HandleSource:
			node, handle = e.Source, e.SourceHandle
		case HandleTarget:
			node, handle = e.Target, e.TargetHandle
		default:
			continue
		}
		if node == nodeID && handle == handleID {
			out = append(out, HandleConnection{Connection: connectionOf(e), EdgeID: e.ID})
		}
	}
	return out
}

// Outgoers returns the nodes node has edges to, in node order
func Outgoers(node Node, nodes []Node, edges []Edge) []Node {
	targets := make(map[string]struct{})
	for _, e := range edges {
		if e.Source == node.ID {
			targets[e.Target] = struct{}{}
		}
	}
	return filterNodes(nodes, targets)
}

// Incomers returns the nodes with edges into node, in node order
func Incomers(node Node, nodes []Node, edges []Edge) []Node {
	sources := make(map[string]struct{})
	for _, e := range edges {
		if e.Target == node.ID {
			sources[e.Source] = struct{}{}
		}
	}
	return filterNodes(nodes, sources)
}

func filterNodes(nodes []Node, ids map[string]struct{}) []Node {
	var out []Node
	for _, n := range nodes {
		if _, ok := ids[n.ID]; ok {
			out = append(out, n)
		}
	}
	return out
}

// FindNode returns the first node with id
func FindNode(nodes []Node, id string) (Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// FindEdge returns the first edge with id
func FindEdge(edges []Edge, id string) (Edge, bool) {
	for _, e := range edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}
