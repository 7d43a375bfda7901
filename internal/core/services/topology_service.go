package services

import (
	"container/heap"
	"math"
	"sort"
	"sync"
	"time"

	"emberlink/internal/core/domain"
	"emberlink/internal/core/ports"

	"go.uber.org/zap"
)

// topologyService merges quality samples and liveness transitions from all
// relays into one graph. It is the only component that mutates link state;
// everything else delivers one-way events or reads snapshots.
type topologyService struct {
	mu        sync.RWMutex
	endpoints map[domain.EndpointID]*domain.Endpoint
	links     map[domain.LinkKey]*domain.Link
	adjacency map[domain.EndpointID]map[domain.LinkKey]struct{}

	logger *zap.SugaredLogger
}

func NewTopologyService(logger *zap.SugaredLogger) ports.TopologyService {
	return &topologyService{
		endpoints: make(map[domain.EndpointID]*domain.Endpoint),
		links:     make(map[domain.LinkKey]*domain.Link),
		adjacency: make(map[domain.EndpointID]map[domain.LinkKey]struct{}),
		logger:    logger,
	}
}

func (s *topologyService) ObserveEndpoint(ep domain.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeEndpointLocked(ep)
}

func (s *topologyService) observeEndpointLocked(ep domain.Endpoint) {
	existing, ok := s.endpoints[ep.ID]
	if !ok {
		if ep.Liveness == "" {
			ep.Liveness = domain.LivenessAlive
		}
		copied := ep
		s.endpoints[ep.ID] = &copied
		return
	}
	if ep.Role != "" {
		existing.Role = ep.Role
	}
	if len(ep.Interfaces) > 0 {
		existing.Interfaces = ep.Interfaces
	}
	if ep.LastSeen.After(existing.LastSeen) {
		existing.LastSeen = ep.LastSeen
	}
}

// ApplySample updates exactly one directional link record. Reports for the
// same physical pair from opposite sides stay distinct; directionality is
// physically meaningful and is never averaged away.
func (s *topologyService) ApplySample(sample domain.QualitySample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sample.Link
	link, ok := s.links[key]
	if !ok {
		link = &domain.Link{Key: key, Liveness: domain.LivenessAlive}
		s.links[key] = link
		s.attachLocked(key.From, key)
		s.attachLocked(key.To, key)
		s.observeEndpointLocked(domain.Endpoint{ID: key.From})
		s.observeEndpointLocked(domain.Endpoint{ID: key.To})
		s.logger.Debugw("link observed",
			"from", key.From, "to", key.To, "iface", key.Iface)
	}

	link.RSSI = sample.RSSI
	link.Loss = sample.Loss
	link.Unconfirmed = sample.Unconfirmed
	link.UpdatedAt = sample.Timestamp
}

func (s *topologyService) attachLocked(id domain.EndpointID, key domain.LinkKey) {
	set, ok := s.adjacency[id]
	if !ok {
		set = make(map[domain.LinkKey]struct{})
		s.adjacency[id] = set
	}
	set[key] = struct{}{}
}

// ApplyTransition moves the endpoint and all its incident links to the new
// liveness state. Transitions are already deduplicated by the heartbeat
// monitor; this is an incremental update, never a rebuild.
func (s *topologyService) ApplyTransition(tr domain.LivenessTransition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observeEndpointLocked(domain.Endpoint{ID: tr.Endpoint})
	ep := s.endpoints[tr.Endpoint]
	ep.Liveness = tr.To
	if tr.To == domain.LivenessAlive {
		ep.LastSeen = tr.Timestamp
	}

	for key := range s.adjacency[tr.Endpoint] {
		link := s.links[key]
		link.Liveness = tr.To
		if tr.To == domain.LivenessAlive {
			link.LastHeartbeat = tr.Timestamp
		}
		link.UpdatedAt = tr.Timestamp
	}
}

func (s *topologyService) Teardown(ep domain.EndpointID) {
	now := time.Now()
	s.ApplyTransition(domain.LivenessTransition{
		Endpoint:  ep,
		From:      domain.LivenessAlive,
		To:        domain.LivenessLost,
		Timestamp: now,
	})
	s.logger.Infow("endpoint torn down", "endpoint", ep)
}

// Snapshot deep-copies the graph. Adjacency lists come out sorted so two
// snapshots taken with no intervening events compare equal.
func (s *topologyService) Snapshot() *domain.TopologyGraph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := domain.NewTopologyGraph()
	for id, ep := range s.endpoints {
		copied := *ep
		copied.Interfaces = append([]domain.InterfaceName(nil), ep.Interfaces...)
		g.Endpoints[id] = &copied
	}
	for key, link := range s.links {
		g.Links[key] = link.Clone()
	}
	for id, set := range s.adjacency {
		keys := make([]domain.LinkKey, 0, len(set))
		for key := range set {
			keys = append(keys, key)
		}
		sortLinkKeys(keys)
		g.Adjacency[id] = keys
	}
	return g
}

func sortLinkKeys(keys []domain.LinkKey) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Iface < b.Iface
	})
}

// ShortestPath runs Dijkstra over non-lost links with |RSSI| as edge cost,
// so stronger links are cheaper. Directional records are walked both ways:
// a report from either side proves the hop exists.
func (s *topologyService) ShortestPath(from, to domain.EndpointID) ([]domain.EndpointID, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.endpoints[from]; !ok {
		return nil, 0, domain.ErrEndpointNotFound
	}
	if _, ok := s.endpoints[to]; !ok {
		return nil, 0, domain.ErrEndpointNotFound
	}

	dist := map[domain.EndpointID]float64{from: 0}
	prev := make(map[domain.EndpointID]domain.EndpointID)

	pq := &pathQueue{{id: from, cost: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pathItem)
		if cur.cost > dist[cur.id] {
			continue
		}
		if cur.id == to {
			break
		}
		for neighbor, weight := range s.usableNeighborsLocked(cur.id) {
			next := cur.cost + weight
			if d, ok := dist[neighbor]; !ok || next < d {
				dist[neighbor] = next
				prev[neighbor] = cur.id
				heap.Push(pq, pathItem{id: neighbor, cost: next})
			}
		}
	}

	if _, ok := dist[to]; !ok {
		return nil, 0, domain.ErrNoPath
	}

	var path []domain.EndpointID
	for cur := to; ; {
		path = append([]domain.EndpointID{cur}, path...)
		if cur == from {
			break
		}
		cur = prev[cur]
	}
	return path, dist[to], nil
}

// Reachable returns every endpoint connected to from through non-lost
// links, in breadth-first order.
func (s *topologyService) Reachable(from domain.EndpointID) ([]domain.EndpointID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.endpoints[from]; !ok {
		return nil, domain.ErrEndpointNotFound
	}

	visited := map[domain.EndpointID]bool{from: true}
	queue := []domain.EndpointID{from}
	var out []domain.EndpointID

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)

		neighbors := make([]domain.EndpointID, 0)
		for n := range s.usableNeighborsLocked(cur) {
			neighbors = append(neighbors, n)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
		for _, n := range neighbors {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return out, nil
}

// usableNeighborsLocked collects the cheapest non-lost edge to each
// neighbor of id, in either link direction.
func (s *topologyService) usableNeighborsLocked(id domain.EndpointID) map[domain.EndpointID]float64 {
	out := make(map[domain.EndpointID]float64)
	for key := range s.adjacency[id] {
		link := s.links[key]
		if link.Liveness == domain.LivenessLost {
			continue
		}
		other := key.To
		if other == id {
			other = key.From
		}
		if other == id {
			continue
		}
		weight := math.Abs(link.RSSI)
		if w, ok := out[other]; !ok || weight < w {
			out[other] = weight
		}
	}
	return out
}

type pathItem struct {
	id   domain.EndpointID
	cost float64
}

type pathQueue []pathItem

func (q pathQueue) Len() int            { return len(q) }
func (q pathQueue) Less(i, j int) bool  { return q[i].cost < q[j].cost }
func (q pathQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(pathItem)) }
func (q *pathQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
