package flow

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChangeSet is one batch of node and edge changes. Node changes are applied
// before edge changes.
type ChangeSet struct {
	Nodes []NodeChange
	Edges []EdgeChange
}

// Empty reports whether the set carries no changes
func (cs ChangeSet) Empty() bool {
	return len(cs.Nodes) == 0 && len(cs.Edges) == 0
}

// Len returns the total number of changes
func (cs ChangeSet) Len() int {
	return len(cs.Nodes) + len(cs.Edges)
}

// Merge returns cs followed by other
func (cs ChangeSet) Merge(other ChangeSet) ChangeSet {
	return ChangeSet{
		Nodes: append(append([]NodeChange(nil), cs.Nodes...), other.Nodes...),
		Edges: append(append([]EdgeChange(nil), cs.Edges...), other.Edges...),
	}
}

// Apply applies the set to a document and returns the next document
func (cs ChangeSet) Apply(doc Document) Document {
	doc.Nodes = ApplyNodeChanges(cs.Nodes, doc.Nodes)
	doc.Edges = ApplyEdgeChanges(cs.Edges, doc.Edges)
	return doc
}

// DiffDocuments returns the change set turning prev into next
func DiffDocuments(prev, next Document) ChangeSet {
	return ChangeSet{
		Nodes: DiffNodes(prev.Nodes, next.Nodes),
		Edges: DiffEdges(prev.Edges, next.Edges),
	}
}

type wireChangeSet struct {
	Nodes []WireChange `json:"nodes"`
	Edges []WireChange `json:"edges"`
}

// MarshalJSON implements json.Marshaler
func (cs ChangeSet) MarshalJSON() ([]byte, error) {
	nodes, err := NodeChangesToWire(cs.Nodes)
	if err != nil {
		return nil, err
	}
	edges, err := EdgeChangesToWire(cs.Edges)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireChangeSet{Nodes: nodes, Edges: edges})
}

// UnmarshalJSON implements json.Unmarshaler. Records are validated.
func (cs *ChangeSet) UnmarshalJSON(data []byte) error {
	var w wireChangeSet
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	nodes, err := NodeChangesFromWire(w.Nodes)
	if err != nil {
		return fmt.Errorf("nodes: %w", err)
	}
	edges, err := EdgeChangesFromWire(w.Edges)
	if err != nil {
		return fmt.Errorf("edges: %w", err)
	}
	cs.Nodes, cs.Edges = nodes, edges
	return nil
}

// ReadChangeSetFile reads a change set from a JSON or YAML file of the form
// {"nodes": [...], "edges": [...]}
func ReadChangeSetFile(path string) (ChangeSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ChangeSet{}, fmt.Errorf("open %s: %w", path, err)
	}
	if isYAML(path) {
		// Round-trip through JSON so both formats share one validating decoder
		var generic map[string]any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return ChangeSet{}, fmt.Errorf("decode %s: %w", path, err)
		}
		if data, err = json.Marshal(generic); err != nil {
			return ChangeSet{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	var cs ChangeSet
	if err := json.Unmarshal(data, &cs); err != nil {
		return ChangeSet{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return cs, nil
}
