package scoring

import (
	"context"
	"sync"
	"time"

	"github.com/stratumgrid/resilience-core/internal/graph"
	"github.com/stratumgrid/resilience-core/pkg/models"
)

// Cache wraps a Scorer with the staleness-bound policy of §4.B: scores
// are recomputed when the graph version changes or when the last
// computation is older than StalenessBound, and never served stale
// beyond that bound.
type Cache struct {
	mu             sync.Mutex
	scorer         Scorer
	stalenessBound time.Duration

	lastVersion   uint64
	lastComputed  time.Time
	lastScores    map[models.NodeID]float64
	haveComputed  bool
}

// NewCache wraps scorer with a staleness bound.
func NewCache(scorer Scorer, stalenessBound time.Duration) *Cache {
	return &Cache{scorer: scorer, stalenessBound: stalenessBound}
}

// Scores returns the cached scores for snap, recomputing if the graph
// version changed since the last computation or the staleness bound
// has elapsed.
func (c *Cache) Scores(ctx context.Context, snap *graph.Snapshot) (map[models.NodeID]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := !c.haveComputed ||
		snap.Version != c.lastVersion ||
		time.Since(c.lastComputed) > c.stalenessBound

	if !stale {
		return c.lastScores, nil
	}

	scores, err := c.scorer.Score(ctx, snap)
	if err != nil {
		return nil, err
	}
	c.lastScores = scores
	c.lastVersion = snap.Version
	c.lastComputed = time.Now()
	c.haveComputed = true
	return scores, nil
}

// Invalidate forces the next Scores call to recompute regardless of
// version or staleness bound.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haveComputed = false
}
