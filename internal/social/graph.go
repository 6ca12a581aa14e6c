// Package social provides the citizens' social network: an undirected graph
// over citizen identities, grown by one of three random-graph generators.
// The graph never sees grid positions; the two structures share only the ID.
package social

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// ErrUnknownTopology is returned by Build for an unrecognized topology.
var ErrUnknownTopology = errors.New("social: unknown topology")

// Topology selects the random-graph generator.
type Topology string

const (
	TopologyUniformRandom          Topology = "uniform-random"          // Erdős–Rényi G(n, p)
	TopologyPreferentialAttachment Topology = "preferential-attachment" // Barabási–Albert
	TopologySmallWorld             Topology = "small-world"             // Watts–Strogatz
)

// Topologies lists every supported topology in a stable order.
var Topologies = []Topology{TopologyUniformRandom, TopologyPreferentialAttachment, TopologySmallWorld}

// ParseTopology validates a topology name.
func ParseTopology(s string) (Topology, error) {
	for _, t := range Topologies {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTopology, s)
}

// GraphConfig holds generator parameters. Only the fields of the selected
// topology are read.
type GraphConfig struct {
	Topology          Topology
	EdgeProbability   float64 // uniform-random: chance each pair is linked
	AttachmentEdges   int     // preferential-attachment: edges per new node
	RingDegree        int     // small-world: lattice degree (even)
	RewireProbability float64 // small-world: chance each lattice edge is rewired
}

// DefaultGraphConfig mirrors the baseline experiment (G(n, 0.1)).
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		Topology:          TopologyUniformRandom,
		EdgeProbability:   0.1,
		AttachmentEdges:   2,
		RingDegree:        4,
		RewireProbability: 0.1,
	}
}

// Graph is an undirected social network keyed by citizen ID.
type Graph[ID ~uint64] struct {
	g *simple.UndirectedGraph
}

// Build constructs a network over ids using the configured generator and a
// generator-private random stream derived from seed. ids are processed in
// ascending order, so the result depends only on the ID set and the seed.
func Build[ID ~uint64](ids []ID, cfg GraphConfig, seed int64) (*Graph[ID], error) {
	nodes := make([]int64, len(ids))
	for i, id := range ids {
		nodes[i] = int64(id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	g := &Graph[ID]{g: simple.NewUndirectedGraph()}
	for _, n := range nodes {
		if g.g.Node(n) == nil {
			g.g.AddNode(simple.Node(n))
		}
	}

	var err error
	switch cfg.Topology {
	case TopologyUniformRandom:
		err = g.erdosRenyi(nodes, cfg.EdgeProbability, exprand.NewSource(uint64(seed)))
	case TopologyPreferentialAttachment:
		err = g.barabasiAlbert(nodes, cfg.AttachmentEdges, exprand.NewSource(uint64(seed)))
	case TopologySmallWorld:
		g.wattsStrogatz(nodes, cfg.RingDegree, cfg.RewireProbability, rand.New(rand.NewSource(seed)))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopology, cfg.Topology)
	}
	if err != nil {
		return nil, fmt.Errorf("social: %s generator: %w", cfg.Topology, err)
	}
	return g, nil
}

// Len returns the number of nodes.
func (g *Graph[ID]) Len() int {
	return g.g.Nodes().Len()
}

// Has reports whether id is a node.
func (g *Graph[ID]) Has(id ID) bool {
	return g.g.Node(int64(id)) != nil
}

// Degree returns the number of neighbors of id (0 if absent).
func (g *Graph[ID]) Degree(id ID) int {
	if !g.Has(id) {
		return 0
	}
	return g.g.From(int64(id)).Len()
}

// Neighbors returns the IDs adjacent to id, ascending.
func (g *Graph[ID]) Neighbors(id ID) []ID {
	if !g.Has(id) {
		return nil
	}
	return sortedIDs[ID](graph.NodesOf(g.g.From(int64(id))))
}

// Nodes returns every node ID, ascending.
func (g *Graph[ID]) Nodes() []ID {
	return sortedIDs[ID](graph.NodesOf(g.g.Nodes()))
}

// Edge is an undirected link, stored with A < B.
type Edge[ID ~uint64] struct {
	A ID `json:"a"`
	B ID `json:"b"`
}

// Edges returns every edge once, sorted by (A, B).
func (g *Graph[ID]) Edges() []Edge[ID] {
	var out []Edge[ID]
	for _, n := range g.Nodes() {
		for _, m := range g.Neighbors(n) {
			if n < m {
				out = append(out, Edge[ID]{A: n, B: m})
			}
		}
	}
	return out
}

// EdgeCount returns the number of undirected edges.
func (g *Graph[ID]) EdgeCount() int {
	return g.g.Edges().Len()
}

// RemoveHighestDegree deletes the node with maximum degree, breaking ties by
// lowest ID, together with all its edges. Returns false on an empty graph.
func (g *Graph[ID]) RemoveHighestDegree() (ID, bool) {
	var (
		best    ID
		bestDeg = -1
	)
	for _, id := range g.Nodes() {
		if d := g.Degree(id); d > bestDeg {
			best, bestDeg = id, d
		}
	}
	if bestDeg < 0 {
		return 0, false
	}
	g.g.RemoveNode(int64(best))
	return best, true
}

// Influencers returns nodes with degree >= minDegree, ascending.
func (g *Graph[ID]) Influencers(minDegree int) []ID {
	var out []ID
	for _, id := range g.Nodes() {
		if g.Degree(id) >= minDegree {
			out = append(out, id)
		}
	}
	return out
}

func (g *Graph[ID]) link(a, b int64) {
	if a == b || g.g.HasEdgeBetween(a, b) {
		return
	}
	g.g.SetEdge(g.g.NewEdge(simple.Node(a), simple.Node(b)))
}

func sortedIDs[ID ~uint64](nodes []graph.Node) []ID {
	out := make([]ID, len(nodes))
	for i, n := range nodes {
		out[i] = ID(n.ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
