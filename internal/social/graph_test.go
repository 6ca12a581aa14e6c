package social

import (
	"errors"
	"reflect"
	"testing"
)

type cid uint64

func ids(n int) []cid {
	out := make([]cid, n)
	for i := range out {
		out[i] = cid(i)
	}
	return out
}

func TestBuild_UniformRandomExtremes(t *testing.T) {
	cfg := DefaultGraphConfig()

	cfg.EdgeProbability = 0
	g, err := Build(ids(20), cfg, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if g.EdgeCount() != 0 {
		t.Fatalf("expected no edges, got %d", g.EdgeCount())
	}
	if g.Len() != 20 {
		t.Fatalf("expected 20 nodes, got %d", g.Len())
	}

	cfg.EdgeProbability = 1
	g, err = Build(ids(20), cfg, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if want := 20 * 19 / 2; g.EdgeCount() != want {
		t.Fatalf("expected %d edges, got %d", want, g.EdgeCount())
	}
}

func TestBuild_PreferentialAttachmentEdgeCount(t *testing.T) {
	cfg := DefaultGraphConfig()
	cfg.Topology = TopologyPreferentialAttachment
	cfg.AttachmentEdges = 3

	g, err := Build(ids(50), cfg, 7)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if want := (50 - 3) * 3; g.EdgeCount() != want {
		t.Fatalf("expected %d edges, got %d", want, g.EdgeCount())
	}
	for _, id := range g.Nodes()[3:] {
		if g.Degree(id) < 3 {
			t.Fatalf("node %d grown with fewer than 3 edges (degree %d)", id, g.Degree(id))
		}
	}
}

func TestBuild_GeneratorsKeepCitizenIDs(t *testing.T) {
	sparse := []cid{40, 10, 70, 20, 90, 30}
	allowed := map[cid]bool{}
	for _, id := range sparse {
		allowed[id] = true
	}

	for _, topo := range []Topology{TopologyUniformRandom, TopologyPreferentialAttachment} {
		cfg := DefaultGraphConfig()
		cfg.Topology = topo
		cfg.EdgeProbability = 1
		cfg.AttachmentEdges = 2
		g, err := Build(sparse, cfg, 11)
		if err != nil {
			t.Fatalf("%s: %v", topo, err)
		}
		if !reflect.DeepEqual(g.Nodes(), []cid{10, 20, 30, 40, 70, 90}) {
			t.Fatalf("%s: unexpected nodes %v", topo, g.Nodes())
		}
		if g.EdgeCount() == 0 {
			t.Fatalf("%s: expected edges", topo)
		}
		for _, e := range g.Edges() {
			if !allowed[e.A] || !allowed[e.B] {
				t.Fatalf("%s: edge %v leaves the citizen set", topo, e)
			}
		}
	}

	cfg := DefaultGraphConfig()
	cfg.EdgeProbability = 1
	g, _ := Build(sparse, cfg, 11)
	if got := g.Neighbors(10); !reflect.DeepEqual(got, []cid{20, 30, 40, 70, 90}) {
		t.Fatalf("complete G(n,1) neighbors of 10: %v", got)
	}
}

func TestBuild_SmallWorldLattice(t *testing.T) {
	cfg := DefaultGraphConfig()
	cfg.Topology = TopologySmallWorld
	cfg.RingDegree = 4
	cfg.RewireProbability = 0

	g, err := Build(ids(12), cfg, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, id := range g.Nodes() {
		if g.Degree(id) != 4 {
			t.Fatalf("node %d: expected degree 4, got %d", id, g.Degree(id))
		}
	}
	if got := g.Neighbors(0); !reflect.DeepEqual(got, []cid{1, 2, 10, 11}) {
		t.Fatalf("unexpected lattice neighbors of 0: %v", got)
	}

	cfg.RewireProbability = 0.5
	g, err = Build(ids(30), cfg, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if want := 30 * 4 / 2; g.EdgeCount() != want {
		t.Fatalf("rewiring must preserve edge count: expected %d, got %d", want, g.EdgeCount())
	}
}

func TestBuild_Deterministic(t *testing.T) {
	for _, topo := range Topologies {
		cfg := DefaultGraphConfig()
		cfg.Topology = topo
		a, err := Build(ids(40), cfg, 99)
		if err != nil {
			t.Fatalf("%s: %v", topo, err)
		}
		b, _ := Build(ids(40), cfg, 99)
		if !reflect.DeepEqual(a.Edges(), b.Edges()) {
			t.Fatalf("%s: same seed produced different graphs", topo)
		}
	}
}

func TestBuild_UnknownTopology(t *testing.T) {
	cfg := DefaultGraphConfig()
	cfg.Topology = "lattice"
	if _, err := Build(ids(5), cfg, 1); !errors.Is(err, ErrUnknownTopology) {
		t.Fatalf("expected ErrUnknownTopology, got %v", err)
	}
	if _, err := ParseTopology("small-world"); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestRemoveHighestDegree(t *testing.T) {
	cfg := DefaultGraphConfig()
	cfg.Topology = TopologyPreferentialAttachment
	g, err := Build(ids(60), cfg, 5)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	maxDeg := 0
	for _, id := range g.Nodes() {
		if d := g.Degree(id); d > maxDeg {
			maxDeg = d
		}
	}
	before := g.Len()

	removed, ok := g.RemoveHighestDegree()
	if !ok {
		t.Fatal("expected a removal")
	}
	if g.Len() != before-1 {
		t.Fatalf("expected %d nodes, got %d", before-1, g.Len())
	}
	if g.Has(removed) {
		t.Fatal("removed node still present")
	}
	for _, id := range g.Nodes() {
		for _, n := range g.Neighbors(id) {
			if n == removed {
				t.Fatalf("node %d still adjacent to removed node %d", id, removed)
			}
		}
	}
	if maxDeg == 0 {
		t.Fatal("preferential attachment graph should have edges")
	}
}

func TestRemoveHighestDegree_TieBreaksLowestID(t *testing.T) {
	cfg := DefaultGraphConfig()
	cfg.Topology = TopologySmallWorld
	cfg.RewireProbability = 0
	g, _ := Build([]cid{7, 3, 9, 5, 11, 4}, cfg, 1)

	removed, ok := g.RemoveHighestDegree()
	if !ok || removed != 3 {
		t.Fatalf("expected node 3 removed on a regular lattice, got %d (ok=%v)", removed, ok)
	}

	empty, _ := Build([]cid{}, cfg, 1)
	if _, ok := empty.RemoveHighestDegree(); ok {
		t.Fatal("empty graph should report no removal")
	}
}

func TestInfluencers(t *testing.T) {
	cfg := DefaultGraphConfig()
	cfg.EdgeProbability = 1
	g, _ := Build(ids(6), cfg, 1)
	if got := len(g.Influencers(5)); got != 6 {
		t.Fatalf("expected every node of K6 to be an influencer, got %d", got)
	}
	if got := len(g.Influencers(6)); got != 0 {
		t.Fatalf("expected none at threshold 6, got %d", got)
	}
}
