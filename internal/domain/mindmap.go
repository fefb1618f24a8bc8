package domain

import "fmt"

// Node is a single concept in a mind map.
type Node struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
	Level       int    `json:"level"`
}

// Edge connects two nodes of a mind map.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Key identifies an edge by its endpoints. Two edges with the same endpoints
// are the same relation.
func (e Edge) Key() string {
	return e.Source + "->" + e.Target
}

// MindMap is an incrementally built graph of nodes and edges. The order of
// Nodes and Edges is the order in which they were first added.
type MindMap struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// AddNode inserts n, or replaces the node with the same ID in place.
// Returns false if n has no ID.
func (m *MindMap) AddNode(n Node) bool {
	if n.ID == "" {
		return false
	}
	for i := range m.Nodes {
		if m.Nodes[i].ID == n.ID {
			m.Nodes[i] = n
			return true
		}
	}
	m.Nodes = append(m.Nodes, n)
	return true
}

// AddEdge inserts e unless an edge with the same endpoints exists, in which
// case that edge is replaced in place. Returns false if an endpoint is missing.
func (m *MindMap) AddEdge(e Edge) bool {
	if e.Source == "" || e.Target == "" {
		return false
	}
	if e.ID == "" {
		e.ID = e.Key()
	}
	for i := range m.Edges {
		if m.Edges[i].Key() == e.Key() {
			m.Edges[i] = e
			return true
		}
	}
	m.Edges = append(m.Edges, e)
	return true
}

// FindNode returns the node with the given ID.
func (m *MindMap) FindNode(id string) (Node, error) {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return Node{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

// Clone returns a deep copy of the mind map.
func (m *MindMap) Clone() *MindMap {
	c := &MindMap{
		Nodes: make([]Node, len(m.Nodes)),
		Edges: make([]Edge, len(m.Edges)),
	}
	copy(c.Nodes, m.Nodes)
	copy(c.Edges, m.Edges)
	return c
}

// Describe returns a short human readable summary.
func (m *MindMap) Describe() string {
	return fmt.Sprintf("%d nodes, %d edges", len(m.Nodes), len(m.Edges))
}
