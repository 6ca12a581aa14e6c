package social

import (
	"math/rand"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/graph/graphs/gen"
	"gonum.org/v1/gonum/graph/simple"
)

// erdosRenyi links each unordered pair independently with probability p.
func (g *Graph[ID]) erdosRenyi(nodes []int64, p float64, src exprand.Source) error {
	scratch := simple.NewUndirectedGraph()
	if err := gen.Gnp(scratch, len(nodes), p, src); err != nil {
		return err
	}
	g.relabel(scratch, nodes)
	return nil
}

// barabasiAlbert grows the network node by node. Each new node links to m
// distinct existing nodes chosen with probability proportional to degree.
// Populations of at most m nodes become a complete graph.
func (g *Graph[ID]) barabasiAlbert(nodes []int64, m int, src exprand.Source) error {
	if m < 1 {
		m = 1
	}
	if len(nodes) <= m {
		g.complete(nodes)
		return nil
	}
	scratch := simple.NewUndirectedGraph()
	if err := gen.PreferentialAttachment(scratch, len(nodes), m, src); err != nil {
		return err
	}
	g.relabel(scratch, nodes)
	return nil
}

// relabel copies the edges of a generator graph, whose node IDs are the
// indices 0..n-1, onto nodes.
func (g *Graph[ID]) relabel(scratch *simple.UndirectedGraph, nodes []int64) {
	edges := scratch.Edges()
	for edges.Next() {
		e := edges.Edge()
		g.link(nodes[e.From().ID()], nodes[e.To().ID()])
	}
}

// wattsStrogatz builds a ring lattice where every node links to its k/2
// nearest neighbors on each side, then rewires each lattice edge (u, v) to
// (u, w) with probability beta, w uniform among nodes not yet linked to u.
// Populations of at most k nodes become a complete graph.
func (g *Graph[ID]) wattsStrogatz(nodes []int64, k int, beta float64, rng *rand.Rand) {
	n := len(nodes)
	if n <= k {
		g.complete(nodes)
		return
	}
	half := k / 2

	for j := 1; j <= half; j++ {
		for i := 0; i < n; i++ {
			g.link(nodes[i], nodes[(i+j)%n])
		}
	}

	for j := 1; j <= half; j++ {
		for i := 0; i < n; i++ {
			if rng.Float64() >= beta {
				continue
			}
			u, v := nodes[i], nodes[(i+j)%n]
			if !g.g.HasEdgeBetween(u, v) {
				continue
			}

			var candidates []int64
			for _, w := range nodes {
				if w != u && !g.g.HasEdgeBetween(u, w) {
					candidates = append(candidates, w)
				}
			}
			if len(candidates) == 0 {
				continue
			}
			w := candidates[rng.Intn(len(candidates))]
			g.g.RemoveEdge(u, v)
			g.link(u, w)
		}
	}
}

func (g *Graph[ID]) complete(nodes []int64) {
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			g.link(nodes[i], nodes[j])
		}
	}
}
