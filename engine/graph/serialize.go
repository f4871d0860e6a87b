package graph

import (
	"encoding/json"
	"fmt"
)

// AdjEntry is one outgoing-edge record in a serialized adjacency list.
type AdjEntry struct {
	ID       string  `json:"id"`
	Key      int     `json:"key"`
	Criteria *string `json:"criteria"`
}

// Serialized is the on-the-wire shape described in §6:
//
//	{ "directed": true, "multigraph": true, "graph": [],
//	  "nodes": [ { "id": "<task>", ...attrs }, ... ],
//	  "adjacency": [ [ {"id","key","criteria"}, ... ], ... ] }
//
// adjacency[i] is positionally aligned with nodes[i].
type Serialized struct {
	Directed   bool               `json:"directed"`
	Multigraph bool               `json:"multigraph"`
	Graph      []any              `json:"graph"`
	Nodes      []map[string]any   `json:"nodes"`
	Adjacency  [][]AdjEntry       `json:"adjacency"`
}

// Serialize renders the graph to the wire shape.
func (g *Graph) Serialize() (*Serialized, error) {
	out := &Serialized{
		Directed:   true,
		Multigraph: true,
		Graph:      []any{},
		Nodes:      make([]map[string]any, 0, len(g.order)),
		Adjacency:  make([][]AdjEntry, 0, len(g.order)),
	}
	for _, id := range g.order {
		node := cloneAttrs(g.nodes[id])
		node["id"] = id
		out.Nodes = append(out.Nodes, node)

		edges := g.outEdges[id]
		adj := make([]AdjEntry, 0, len(edges))
		for _, e := range edges {
			adj = append(adj, AdjEntry{ID: e.Dst, Key: e.Key, Criteria: e.Criteria})
		}
		out.Adjacency = append(out.Adjacency, adj)
	}
	return out, nil
}

// MarshalJSON implements json.Marshaler by delegating to Serialize.
func (g *Graph) MarshalJSON() ([]byte, error) {
	s, err := g.Serialize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// Deserialize reconstructs a Graph from its wire shape, preserving node
// order and every parallel edge (including duplicates the public
// AddTransition API would reject) so that deserialize(serialize(G)) == G.
func Deserialize(s *Serialized) (*Graph, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot deserialize nil graph")
	}
	if len(s.Adjacency) != len(s.Nodes) {
		return nil, fmt.Errorf("graph adjacency length %d does not match node count %d", len(s.Adjacency), len(s.Nodes))
	}
	g := New()
	for _, node := range s.Nodes {
		id, ok := node["id"].(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("graph node missing string \"id\"")
		}
		attrs := make(map[string]any, len(node))
		for k, v := range node {
			if k == "id" {
				continue
			}
			attrs[k] = v
		}
		g.AddTask(id, attrs)
	}
	for i, id := range g.order {
		for _, adj := range s.Adjacency[i] {
			if !g.HasTask(adj.ID) {
				return nil, fmt.Errorf("graph adjacency references unknown node %q", adj.ID)
			}
			g.addEdgeWithKey(id, adj.ID, adj.Key, adj.Criteria)
		}
	}
	return g, nil
}

// UnmarshalJSON implements json.Unmarshaler, replacing the receiver's
// contents with the deserialized graph.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var s Serialized
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	decoded, err := Deserialize(&s)
	if err != nil {
		return err
	}
	*g = *decoded
	return nil
}
