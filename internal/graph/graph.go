package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tags what a node represents so renderers can style it.
type Kind string

const (
	KindAttack    Kind = "attack-technique"
	KindDefensive Kind = "defensive-technique"
	KindTactic    Kind = "tactic"
	KindFramework Kind = "framework"
	KindUnknown   Kind = "unknown"
)

// Node is a knowledge-graph entity. ID is its only identity; labels may collide.
type Node struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Kind        Kind   `json:"kind"`
	Framework   string `json:"framework,omitempty"`
	Color       string `json:"color"`
}

// Edge is a directed relation between two nodes of the same graph.
type Edge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// Diagnostic records a row or edge the builder could not use.
type Diagnostic struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Graph is the result of one build: nodes and edges in insertion order.
type Graph struct {
	Nodes       []Node       `json:"nodes"`
	Edges       []Edge       `json:"edges"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	nodeIndex map[string]int
	edgeIndex map[string]int
}

// New returns an empty graph ready for insertion.
func New() *Graph {
	return &Graph{
		Nodes:     make([]Node, 0),
		Edges:     make([]Edge, 0),
		nodeIndex: make(map[string]int),
		edgeIndex: make(map[string]int),
	}
}

// EdgeID derives the identity of an edge from its endpoints and relation.
func EdgeID(source, target, relation string) string {
	return fmt.Sprintf("%s -[%s]-> %s", source, relation, target)
}

func (g *Graph) index() {
	if g.nodeIndex != nil && len(g.nodeIndex) == len(g.Nodes) && len(g.edgeIndex) == len(g.Edges) {
		return
	}
	g.nodeIndex = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		g.nodeIndex[n.ID] = i
	}
	g.edgeIndex = make(map[string]int, len(g.Edges))
	for i, e := range g.Edges {
		g.edgeIndex[e.ID] = i
	}
}

// AddNode inserts n unless a node with the same ID exists. The first write wins.
// It reports whether n was inserted.
func (g *Graph) AddNode(n Node) bool {
	if n.ID == "" {
		return false
	}
	g.index()
	if _, ok := g.nodeIndex[n.ID]; ok {
		return false
	}
	if n.Label == "" {
		n.Label = n.ID
	}
	if n.Kind == "" {
		n.Kind = KindUnknown
	}
	g.nodeIndex[n.ID] = len(g.Nodes)
	g.Nodes = append(g.Nodes, n)
	return true
}

// AddEdge inserts an edge between two existing nodes. It is a no-op when the
// same (source, target, relation) edge exists, and fails when an endpoint is missing.
func (g *Graph) AddEdge(source, target, relation string) (Edge, error) {
	g.index()
	if _, ok := g.nodeIndex[source]; !ok {
		return Edge{}, fmt.Errorf("source node %q not in graph", source)
	}
	if _, ok := g.nodeIndex[target]; !ok {
		return Edge{}, fmt.Errorf("target node %q not in graph", target)
	}

	e := Edge{ID: EdgeID(source, target, relation), Source: source, Target: target, Relation: relation}
	if i, ok := g.edgeIndex[e.ID]; ok {
		return g.Edges[i], nil
	}
	g.edgeIndex[e.ID] = len(g.Edges)
	g.Edges = append(g.Edges, e)
	return e, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.index()
	i, ok := g.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// HasNode reports whether id is a node of g.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Node(id)
	return ok
}

// Diagnose appends a diagnostic for the given row index.
func (g *Graph) Diagnose(row int, format string, args ...any) {
	g.Diagnostics = append(g.Diagnostics, Diagnostic{Row: row, Reason: fmt.Sprintf(format, args...)})
}

// Neighbors returns the ids adjacent to id in either direction, sorted.
func (g *Graph) Neighbors(id string) []string {
	set := make(map[string]struct{})
	for _, e := range g.Edges {
		switch id {
		case e.Source:
			set[e.Target] = struct{}{}
		case e.Target:
			set[e.Source] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Centrality is a node's degree split by direction.
type Centrality struct {
	ID     string `json:"id"`
	In     int    `json:"in"`
	Out    int    `json:"out"`
	Degree int    `json:"degree"`
}

// DegreeCentrality ranks nodes by total degree, highest first, ties by id.
func (g *Graph) DegreeCentrality() []Centrality {
	byID := make(map[string]*Centrality, len(g.Nodes))
	out := make([]Centrality, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = &Centrality{ID: n.ID}
	}
	for _, e := range g.Edges {
		if c, ok := byID[e.Source]; ok {
			c.Out++
			c.Degree++
		}
		if c, ok := byID[e.Target]; ok {
			c.In++
			c.Degree++
		}
	}
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Degree != out[j].Degree {
			return out[i].Degree > out[j].Degree
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ShortestPath returns the node ids of a shortest undirected path from -> to,
// inclusive, or nil when either node is missing or unreachable.
func (g *Graph) ShortestPath(from, to string) []string {
	if !g.HasNode(from) || !g.HasNode(to) {
		return nil
	}
	if from == to {
		return []string{from}
	}

	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.Neighbors(cur) {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == to {
				path := []string{to}
				for at := cur; at != ""; at = prev[at] {
					path = append([]string{at}, path...)
				}
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// Search returns nodes whose label or id contains term, case-insensitively.
// An empty term matches nothing.
func (g *Graph) Search(term string) []Node {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var out []Node
	for _, n := range g.Nodes {
		if strings.Contains(strings.ToLower(n.Label), term) || strings.Contains(strings.ToLower(n.ID), term) {
			out = append(out, n)
		}
	}
	return out
}

// Stats summarises the graph for logs and API responses.
type Stats struct {
	TotalNodes  int          `json:"total_nodes"`
	TotalEdges  int          `json:"total_edges"`
	NodesByKind map[Kind]int `json:"nodes_by_kind,omitempty"`
	Skipped     int          `json:"skipped"`
}

// Stats counts nodes, edges and diagnostics.
func (g *Graph) Stats() Stats {
	s := Stats{
		TotalNodes:  len(g.Nodes),
		TotalEdges:  len(g.Edges),
		NodesByKind: make(map[Kind]int),
		Skipped:     len(g.Diagnostics),
	}
	for _, n := range g.Nodes {
		s.NodesByKind[n.Kind]++
	}
	return s
}
