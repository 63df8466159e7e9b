package graph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Components labels every node with the id of its connected component.
// Labels are dense, starting at 0, in ascending order of each component's
// smallest node id.
func (g *Graph) Components() map[NodeID]int {
	nodes := g.Nodes()
	index := make(map[NodeID]uint32, len(nodes))
	for i, n := range nodes {
		index[n] = uint32(i)
	}

	uf := NewUnionFind(uint32(len(nodes)))
	for _, e := range g.edges {
		uf.Union(index[e.Nodes[0]], index[e.Nodes[1]])
	}

	labels := make(map[NodeID]int, len(nodes))
	byRoot := make(map[uint32]int)
	for i, n := range nodes {
		root := uf.Find(uint32(i))
		label, ok := byRoot[root]
		if !ok {
			label = len(byRoot)
			byRoot[root] = label
		}
		labels[n] = label
	}
	return labels
}

// LargestComponent returns the nodes of the connected component with the
// most nodes, in ascending order. Ties go to the lowest label.
func (g *Graph) LargestComponent() []NodeID {
	labels := g.Components()
	if len(labels) == 0 {
		return nil
	}

	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}
	best, bestSize := 0, -1
	for l := 0; l < len(counts); l++ {
		if counts[l] > bestSize {
			best, bestSize = l, counts[l]
		}
	}

	nodes := make([]NodeID, 0, bestSize)
	for _, n := range g.Nodes() {
		if labels[n] == best {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// FilterToComponent returns a new graph with only the given nodes and the
// edges whose endpoints are both among them.
func (g *Graph) FilterToComponent(nodes []NodeID) (*Graph, error) {
	keep := make(map[NodeID]bool, len(nodes))
	for _, n := range nodes {
		keep[n] = true
	}

	var edges []Edge
	for _, e := range g.Edges() {
		if keep[e.Nodes[0]] && keep[e.Nodes[1]] {
			edges = append(edges, e)
		}
	}
	return Build(nodes, edges)
}
