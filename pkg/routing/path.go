package routing

import "topo_router/pkg/graph"

// predecessor records how the search first reached a node.
type predecessor struct {
	node   graph.NodeID
	edge   graph.EdgeID
	pathID graph.EdgeID
	weight float64
	from   float64
	to     float64
}

// reconstructPath walks predecessors from target back to a source node
// (a node without predecessor) and returns the path in source → target order.
func reconstructPath(pred map[graph.NodeID]predecessor, target graph.NodeID, weight float64) *Path {
	var components []PathComponent
	node := target
	for {
		p, ok := pred[node]
		if !ok {
			break
		}
		components = append(components, PathComponent{
			Start:  p.node,
			End:    node,
			Edge:   p.edge,
			PathID: p.pathID,
			Weight: p.weight,
			From:   p.from,
			To:     p.to,
		})
		node = p.node
	}

	// Reverse to get source → target.
	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}

	return &Path{Components: components, Weight: weight}
}
