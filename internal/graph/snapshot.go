package graph

import (
	"sort"

	"github.com/stratumgrid/resilience-core/pkg/models"
)

// Snapshot is a logically immutable, structurally copied view of the
// graph (or a reachable subgraph of it) at the instant it was taken.
// Subsequent mutations to the owning Store never affect an issued
// Snapshot.
type Snapshot struct {
	Version uint64
	Nodes   map[models.NodeID]*models.Node
	Out     map[models.NodeID]map[models.NodeID]*models.Edge
	In      map[models.NodeID]map[models.NodeID]*models.Edge
}

// Node returns a node from the snapshot, or nil if absent.
func (s *Snapshot) Node(id models.NodeID) *models.Node {
	return s.Nodes[id]
}

// OutNeighbors returns the set of nodes id depends on (id -> dst).
func (s *Snapshot) OutNeighbors(id models.NodeID) map[models.NodeID]*models.Edge {
	return s.Out[id]
}

// InNeighbors returns the set of nodes that depend on id (src -> id).
func (s *Snapshot) InNeighbors(id models.NodeID) map[models.NodeID]*models.Edge {
	return s.In[id]
}

// NodeIDs returns every node id in deterministic (lexicographic) order.
func (s *Snapshot) NodeIDs() []models.NodeID {
	ids := make([]models.NodeID, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns a consistent, immutable copy of the entire graph.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyAll()
}

// copyAll must be called with s.mu held for reading.
func (s *Store) copyAll() *Snapshot {
	snap := &Snapshot{
		Version: s.version,
		Nodes:   make(map[models.NodeID]*models.Node, len(s.nodes)),
		Out:     make(map[models.NodeID]map[models.NodeID]*models.Edge, len(s.out)),
		In:      make(map[models.NodeID]map[models.NodeID]*models.Edge, len(s.in)),
	}
	for id, n := range s.nodes {
		snap.Nodes[id] = n.Clone()
	}
	for src, dsts := range s.out {
		m := make(map[models.NodeID]*models.Edge, len(dsts))
		for dst, e := range dsts {
			m[dst] = e.Clone()
		}
		snap.Out[src] = m
	}
	for dst, srcs := range s.in {
		m := make(map[models.NodeID]*models.Edge, len(srcs))
		for src, e := range srcs {
			m[src] = e.Clone()
		}
		snap.In[dst] = m
	}
	return snap
}

// Subgraph returns a Snapshot restricted to the nodes reachable from
// seeds within maxDepth hops (in either direction), plus the edges
// between them.
func (s *Store) Subgraph(seeds []models.NodeID, maxDepth int) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range seeds {
		if _, ok := s.nodes[id]; !ok {
			return nil, models.NotFound("graph.Subgraph", "seed not found: "+string(id))
		}
	}

	keep := make(map[models.NodeID]bool)
	frontier := append([]models.NodeID(nil), seeds...)
	for _, id := range seeds {
		keep[id] = true
	}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []models.NodeID
		for _, cur := range frontier {
			for dst := range s.out[cur] {
				if !keep[dst] {
					keep[dst] = true
					next = append(next, dst)
				}
			}
			for src := range s.in[cur] {
				if !keep[src] {
					keep[src] = true
					next = append(next, src)
				}
			}
		}
		frontier = next
	}

	full := s.copyAll()
	snap := &Snapshot{
		Version: full.Version,
		Nodes:   make(map[models.NodeID]*models.Node, len(keep)),
		Out:     make(map[models.NodeID]map[models.NodeID]*models.Edge, len(keep)),
		In:      make(map[models.NodeID]map[models.NodeID]*models.Edge, len(keep)),
	}
	for id := range keep {
		snap.Nodes[id] = full.Nodes[id]
		outM := make(map[models.NodeID]*models.Edge)
		for dst, e := range full.Out[id] {
			if keep[dst] {
				outM[dst] = e
			}
		}
		snap.Out[id] = outM
		inM := make(map[models.NodeID]*models.Edge)
		for src, e := range full.In[id] {
			if keep[src] {
				inM[src] = e
			}
		}
		snap.In[id] = inM
	}
	return snap, nil
}
