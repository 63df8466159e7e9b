package routing

import (
	"context"
	"errors"

	"topo_router/pkg/graph"
)

// ErrNotFound is returned when no path joins the requested nodes.
var ErrNotFound = errors.New("no path found")

// MinHeap is a concrete-typed min-heap for the Dijkstra priority queue.
// Entries with equal distance pop in insertion order.
type MinHeap struct {
	items []PQItem
	seq   uint64
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node graph.NodeID
	Dist float64
	seq  uint64
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node graph.NodeID, dist float64) {
	h.items = append(h.items, PQItem{Node: node, Dist: dist, seq: h.seq})
	h.seq++
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	return a.seq < b.seq
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.less(left, smallest) {
			smallest = left
		}
		if right < n && h.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// PathComponent is one traversed edge of a shortest path.
type PathComponent struct {
	Start  graph.NodeID
	End    graph.NodeID
	Edge   graph.EdgeID
	PathID graph.EdgeID // path segment of Edge, captured before any splice is undone
	Weight float64

	// From and To give the stretch of PathID covered, as fractions in
	// travel direction: From is at Start, To at End.
	From, To float64
}

// Path is an ordered list of traversed edges from a source to a destination.
type Path struct {
	Components []PathComponent
	Weight     float64
}

// ShortestPath runs Dijkstra from every node of sources at weight 0 and
// stops at the first node of dests to be settled. Unknown source nodes are
// ignored. A node present in both sets yields an empty path of weight 0.
//
// A neighbor's predecessor is only replaced by a strictly shorter candidate,
// so among equal-weight paths the first one discovered wins.
func ShortestPath(ctx context.Context, g *graph.Graph, sources, dests []graph.NodeID) (*Path, error) {
	isDest := make(map[graph.NodeID]bool, len(dests))
	for _, d := range dests {
		isDest[d] = true
	}

	dist := make(map[graph.NodeID]float64)
	pred := make(map[graph.NodeID]predecessor)
	visited := make(map[graph.NodeID]bool)
	var pq MinHeap

	for _, s := range sources {
		if !g.HasNode(s) {
			continue
		}
		if _, seen := dist[s]; seen {
			continue
		}
		dist[s] = 0
		pq.Push(s, 0)
	}

	iterations := 0
	for pq.Len() > 0 {
		iterations++
		if iterations%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		item := pq.Pop()
		u := item.Node
		if visited[u] || item.Dist > dist[u] {
			continue // stale entry
		}
		visited[u] = true

		if isDest[u] {
			return reconstructPath(pred, u, item.Dist), nil
		}

		for _, nb := range g.Neighbors(u) {
			if visited[nb.Node] {
				continue
			}
			e, _ := g.Edge(nb.Edge)
			candidate := item.Dist + e.Length
			if old, ok := dist[nb.Node]; ok && candidate >= old {
				continue
			}
			dist[nb.Node] = candidate
			from, to := e.From, e.To
			if u != e.Nodes[0] {
				from, to = to, from
			}
			pred[nb.Node] = predecessor{node: u, edge: e.ID, pathID: e.PathID, weight: e.Length, from: from, to: to}
			pq.Push(nb.Node, candidate)
		}
	}

	return nil, ErrNotFound
}
