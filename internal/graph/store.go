// Package graph implements the dependency graph store: typed nodes and
// edges, thread-safe mutation, and neighbor/subgraph/snapshot queries.
package graph

import (
	"sort"
	"sync"
	"time"

	"github.com/stratumgrid/resilience-core/pkg/models"
)

// Store is the concurrency-safe, in-memory dependency graph. All
// mutations acquire the write lease; all reads either acquire the read
// lease or operate on an already-copied Snapshot, so a reader never
// observes a torn structure.
type Store struct {
	mu      sync.RWMutex
	nodes   map[models.NodeID]*models.Node
	out     map[models.NodeID]map[models.NodeID]*models.Edge // src -> dst -> edge
	in      map[models.NodeID]map[models.NodeID]*models.Edge // dst -> src -> edge
	version uint64
}

// New creates an empty graph store.
func New() *Store {
	return &Store{
		nodes: make(map[models.NodeID]*models.Node),
		out:   make(map[models.NodeID]map[models.NodeID]*models.Edge),
		in:    make(map[models.NodeID]map[models.NodeID]*models.Edge),
	}
}

// Version returns the current graph version, bumped on every mutation.
// Callers use it to decide whether a cached criticality score is stale.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// AddNode inserts a new node. Returns a conflict error if NodeID exists.
func (s *Store) AddNode(n *models.Node) error {
	if !models.ValidNodeKind(n.Kind) {
		return models.InvalidRequest("graph.AddNode", "unrecognized node kind: "+string(n.Kind))
	}
	if err := validateNodeInvariants(n); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[n.ID]; exists {
		return models.Conflict("graph.AddNode", "node already exists: "+string(n.ID))
	}
	cp := n.Clone()
	cp.UpdatedAt = time.Now()
	s.nodes[cp.ID] = cp
	s.out[cp.ID] = make(map[models.NodeID]*models.Edge)
	s.in[cp.ID] = make(map[models.NodeID]*models.Edge)
	s.version++
	return nil
}

// NodeDelta describes a partial update to a node's mutable fields. A
// nil field is left unchanged.
type NodeDelta struct {
	Load       *float64
	Health     *float64
	Properties map[string]any
}

// UpdateNode applies a partial update, enforcing invariants.
func (s *Store) UpdateNode(id models.NodeID, delta NodeDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return models.NotFound("graph.UpdateNode", "node not found: "+string(id))
	}
	next := *n
	if delta.Load != nil {
		next.Load = *delta.Load
	}
	if delta.Health != nil {
		next.Health = *delta.Health
	}
	if delta.Properties != nil {
		merged := make(map[string]any, len(n.Properties)+len(delta.Properties))
		for k, v := range n.Properties {
			merged[k] = v
		}
		for k, v := range delta.Properties {
			merged[k] = v
		}
		next.Properties = merged
	}
	if err := validateNodeInvariants(&next); err != nil {
		return err
	}
	next.UpdatedAt = time.Now()
	s.nodes[id] = &next
	s.version++
	return nil
}

// RemoveNode deletes a node and every edge incident to it.
func (s *Store) RemoveNode(id models.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return models.NotFound("graph.RemoveNode", "node not found: "+string(id))
	}
	for dst := range s.out[id] {
		delete(s.in[dst], id)
	}
	for src := range s.in[id] {
		delete(s.out[src], id)
	}
	delete(s.out, id)
	delete(s.in, id)
	delete(s.nodes, id)
	s.version++
	return nil
}

// AddEdge inserts a directed edge src -> dst ("src depends on dst").
func (s *Store) AddEdge(e *models.Edge) error {
	if e.Src == e.Dst {
		return models.InvalidRequest("graph.AddEdge", "self-loop not allowed: "+string(e.Src))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[e.Src]; !ok {
		return models.NotFound("graph.AddEdge", "src not found: "+string(e.Src))
	}
	if _, ok := s.nodes[e.Dst]; !ok {
		return models.NotFound("graph.AddEdge", "dst not found: "+string(e.Dst))
	}
	if _, exists := s.out[e.Src][e.Dst]; exists {
		return models.Conflict("graph.AddEdge", "edge already exists: "+string(e.Src)+"->"+string(e.Dst))
	}
	cp := e.Clone()
	s.out[e.Src][e.Dst] = cp
	s.in[e.Dst][e.Src] = cp
	s.version++
	return nil
}

// RemoveEdge deletes the directed edge src -> dst.
func (s *Store) RemoveEdge(src, dst models.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.out[src][dst]; !ok {
		return models.NotFound("graph.RemoveEdge", "edge not found: "+string(src)+"->"+string(dst))
	}
	delete(s.out[src], dst)
	delete(s.in[dst], src)
	s.version++
	return nil
}

// GetNode returns a copy of a node.
func (s *Store) GetNode(id models.NodeID) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, models.NotFound("graph.GetNode", "node not found: "+string(id))
	}
	return n.Clone(), nil
}

func validateNodeInvariants(n *models.Node) error {
	if n.Capacity < 0 {
		return models.InvalidRequest("graph.validate", "capacity must be >= 0")
	}
	if n.Load < 0 {
		return models.InvalidRequest("graph.validate", "load must be >= 0")
	}
	if n.Health < 0 || n.Health > 1 {
		return models.InvalidRequest("graph.validate", "health must be in [0,1]")
	}
	if n.Criticality < 0 || n.Criticality > 1 {
		return models.InvalidRequest("graph.validate", "criticality must be in [0,1]")
	}
	return nil
}

// NeighborHop is one entry in a BFS neighbor listing.
type NeighborHop struct {
	NodeID models.NodeID
	Depth  int
}

// Neighbors runs a bounded-depth BFS from id in the given direction.
// Ties within a BFS frontier are broken by NodeID lexicographic order,
// which is required for reproducible traversal order.
func (s *Store) Neighbors(id models.NodeID, dir models.Direction, maxDepth int) ([]NeighborHop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return nil, models.NotFound("graph.Neighbors", "node not found: "+string(id))
	}

	visited := map[models.NodeID]bool{id: true}
	frontier := []models.NodeID{id}
	var result []NeighborHop

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []models.NodeID
		for _, cur := range frontier {
			for _, nb := range s.adjacent(cur, dir) {
				if !visited[nb] {
					visited[nb] = true
					next = append(next, nb)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		for _, nb := range next {
			result = append(result, NeighborHop{NodeID: nb, Depth: depth})
		}
		frontier = next
	}
	return result, nil
}

func (s *Store) adjacent(id models.NodeID, dir models.Direction) []models.NodeID {
	var out []models.NodeID
	if dir == models.DirectionOut || dir == models.DirectionBoth {
		for dst := range s.out[id] {
			out = append(out, dst)
		}
	}
	if dir == models.DirectionIn || dir == models.DirectionBoth {
		for src := range s.in[id] {
			out = append(out, src)
		}
	}
	return out
}
