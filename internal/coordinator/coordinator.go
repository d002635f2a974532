// Package coordinator implements the job coordinator: request
// deduplication by fingerprint, bounded worker-pool admission,
// attached-handle cancellation, and result publication, per §4.E.
package coordinator

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/stratumgrid/resilience-core/internal/cascade"
	"github.com/stratumgrid/resilience-core/internal/fanout"
	"github.com/stratumgrid/resilience-core/internal/graph"
	"github.com/stratumgrid/resilience-core/internal/metrics"
	"github.com/stratumgrid/resilience-core/internal/scoring"
	"github.com/stratumgrid/resilience-core/pkg/logger"
	"github.com/stratumgrid/resilience-core/pkg/models"
)

// defaultQueueCapacity is the extra headroom beyond the worker pool
// size that Submit will admit before failing fast with overloaded.
const defaultQueueCapacity = 64

// Handle identifies one caller's attachment to a (possibly shared) job.
type Handle string

// job is one in-flight or completed simulation, potentially shared by
// several attached Handles that all submitted the same Fingerprint.
type job struct {
	fingerprint models.Fingerprint
	req         *models.SimulationRequest
	ctx         context.Context
	cancel      context.CancelFunc
	startedAt   time.Time

	done   chan struct{}
	result *models.AggregateResult
	err    error

	mu       sync.Mutex
	attached map[Handle]bool
}

// Coordinator runs cascade simulations submitted by fingerprint,
// deduplicating identical in-flight requests and bounding concurrency.
type Coordinator struct {
	engine *cascade.Engine
	store  *graph.Store
	scores *scoring.Cache
	bus    *fanout.Bus

	workerSem *semaphore.Weighted
	capacity  int64

	mu            sync.Mutex
	admitted      int64
	byFingerprint map[models.Fingerprint]*job
	byHandle      map[Handle]*job
}

// New builds a Coordinator. poolSize <= 0 defaults to GOMAXPROCS.
// queueCapacity <= 0 uses the spec's documented default of 64.
func New(engine *cascade.Engine, store *graph.Store, scores *scoring.Cache, bus *fanout.Bus, poolSize, queueCapacity int) *Coordinator {
	if poolSize <= 0 {
		poolSize = runtime.GOMAXPROCS(0)
	}
	if queueCapacity <= 0 {
		queueCapacity = defaultQueueCapacity
	}
	return &Coordinator{
		engine:        engine,
		store:         store,
		scores:        scores,
		bus:           bus,
		workerSem:     semaphore.NewWeighted(int64(poolSize)),
		capacity:      int64(poolSize) + int64(queueCapacity),
		byFingerprint: make(map[models.Fingerprint]*job),
		byHandle:      make(map[Handle]*job),
	}
}

// Submit computes req's Fingerprint against the current graph version.
// If an identical request is already in flight, the returned Handle
// attaches to it and no duplicate work is done. Otherwise a new job is
// admitted, or Submit fails fast with overloaded if the pool+queue
// capacity is already full.
func (c *Coordinator) Submit(ctx context.Context, req *models.SimulationRequest) (Handle, error) {
	snap := c.store.Snapshot()
	fp := cascade.Fingerprint(snap.Version, req)

	c.mu.Lock()
	if existing, ok := c.byFingerprint[fp]; ok {
		h := newHandle()
		existing.mu.Lock()
		existing.attached[h] = true
		existing.mu.Unlock()
		c.byHandle[h] = existing
		c.mu.Unlock()
		metrics.CoordinatorSubmissionsTotal.WithLabelValues("deduplicated").Inc()
		return h, nil
	}
	if c.admitted >= c.capacity {
		c.mu.Unlock()
		metrics.CoordinatorSubmissionsTotal.WithLabelValues("overloaded").Inc()
		return "", models.Overloaded("coordinator.Submit", "worker pool and queue at capacity")
	}
	c.admitted++
	metrics.CoordinatorSubmissionsTotal.WithLabelValues("accepted").Inc()
	metrics.CoordinatorActiveJobs.Inc()

	jobCtx, cancel := context.WithCancel(context.Background())
	j := &job{
		fingerprint: fp,
		req:         req,
		ctx:         jobCtx,
		cancel:      cancel,
		startedAt:   time.Now(),
		done:        make(chan struct{}),
		attached:    make(map[Handle]bool),
	}
	h := newHandle()
	j.attached[h] = true
	c.byFingerprint[fp] = j
	c.byHandle[h] = j
	c.mu.Unlock()

	go c.run(j, snap)
	return h, nil
}

// run executes j on the bounded worker pool and publishes its outcome.
func (c *Coordinator) run(j *job, snap *graph.Snapshot) {
	defer close(j.done)
	defer func() {
		c.mu.Lock()
		delete(c.byFingerprint, j.fingerprint)
		c.admitted--
		c.mu.Unlock()
		metrics.CoordinatorActiveJobs.Dec()
	}()

	if err := c.workerSem.Acquire(j.ctx, 1); err != nil {
		j.err = models.Cancelled("coordinator.run", "cancelled while waiting for a worker")
		c.publish(j)
		return
	}
	defer c.workerSem.Release(1)

	scores, err := c.scores.Scores(j.ctx, snap)
	if err != nil {
		j.err = err
		c.publish(j)
		return
	}

	j.result, j.err = c.engine.Simulate(j.ctx, snap, scores, j.req)
	c.publish(j)
}

func (c *Coordinator) publish(j *job) {
	elapsed := time.Since(j.startedAt)
	if j.err != nil {
		logger.ForFingerprint(string(j.fingerprint)).Warn("simulation job failed", "elapsed", elapsed, "error", j.err)
		c.bus.Publish(models.TopicSimulationFailed, models.BusEvent{
			Timestamp: time.Now(),
			Payload:   map[string]any{"fingerprint": j.fingerprint, "error": j.err.Error()},
		})
		return
	}
	c.bus.Publish(models.TopicSimulationComplete, models.BusEvent{
		Timestamp: time.Now(),
		Payload:   j.result,
	})
}

// Await blocks until h's job completes, ctx is cancelled, or the job
// itself was cancelled to zero attached handles.
func (c *Coordinator) Await(ctx context.Context, h Handle) (*models.AggregateResult, error) {
	c.mu.Lock()
	j, ok := c.byHandle[h]
	c.mu.Unlock()
	if !ok {
		return nil, models.NotFound("coordinator.Await", "unknown handle")
	}

	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return nil, models.Cancelled("coordinator.Await", "caller context cancelled")
	}
}

// Cancel detaches h from its job. When the last attached handle
// detaches, the underlying job's context is cancelled and its worker
// is released promptly.
func (c *Coordinator) Cancel(h Handle) error {
	c.mu.Lock()
	j, ok := c.byHandle[h]
	if !ok {
		c.mu.Unlock()
		return models.NotFound("coordinator.Cancel", "unknown handle")
	}
	delete(c.byHandle, h)
	c.mu.Unlock()

	j.mu.Lock()
	delete(j.attached, h)
	remaining := len(j.attached)
	j.mu.Unlock()

	if remaining == 0 {
		j.cancel()
	}
	return nil
}

func newHandle() Handle {
	return Handle(uuid.NewString())
}
