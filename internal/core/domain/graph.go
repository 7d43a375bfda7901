package domain

// TopologyGraph is a point-in-time copy of the aggregated link state.
// Links holds every directional record; Adjacency maps each endpoint to
// the keys of all links it participates in, on either end.
type TopologyGraph struct {
	Endpoints map[EndpointID]*Endpoint
	Links     map[LinkKey]*Link
	Adjacency map[EndpointID][]LinkKey
}

func NewTopologyGraph() *TopologyGraph {
	return &TopologyGraph{
		Endpoints: make(map[EndpointID]*Endpoint),
		Links:     make(map[LinkKey]*Link),
		Adjacency: make(map[EndpointID][]LinkKey),
	}
}

// Neighbors returns the endpoints directly linked to id, deduplicated.
func (g *TopologyGraph) Neighbors(id EndpointID) []EndpointID {
	seen := make(map[EndpointID]bool)
	var out []EndpointID
	for _, key := range g.Adjacency[id] {
		other := key.To
		if other == id {
			other = key.From
		}
		if other == id || seen[other] {
			continue
		}
		seen[other] = true
		out = append(out, other)
	}
	return out
}
