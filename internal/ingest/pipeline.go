// Package ingest implements the telemetry ingestion pipeline: schema
// validation, per-source ordering, bounded-concurrency application to
// the graph store, and publication of applied mutations, per §4.D.
package ingest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/stratumgrid/resilience-core/internal/fanout"
	"github.com/stratumgrid/resilience-core/internal/graph"
	"github.com/stratumgrid/resilience-core/internal/metrics"
	"github.com/stratumgrid/resilience-core/pkg/logger"
	"github.com/stratumgrid/resilience-core/pkg/models"
)

// defaultBufferCapacity bounds how many records may be applying to the
// graph store concurrently. It stands in for §4.D's "bounded
// buffering": beyond this many in-flight applications, new records are
// rejected rather than queued without limit.
const defaultBufferCapacity = 128

// Pipeline validates, orders, and applies IngestRecords to a graph
// Store, publishing every applied mutation on a fan-out Bus.
type Pipeline struct {
	store            *graph.Store
	bus              *fanout.Bus
	defaultSem       *semaphore.Weighted
	semByType        map[models.DataType]*semaphore.Weighted
	qualityThreshold float64

	orderMu  sync.Mutex
	lastSeen map[string]time.Time // source_id -> last applied record timestamp
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithBufferCapacity overrides the number of concurrently in-flight
// applications the pipeline admits before returning backpressure, for
// data types with no more specific WithBufferCapacityForType entry.
func WithBufferCapacity(capacity int64) Option {
	return func(p *Pipeline) { p.defaultSem = semaphore.NewWeighted(capacity) }
}

// WithBufferCapacityForType gives a single source class (a DataType,
// e.g. sensor.load) its own admission buffer, sized independently of
// the shared default. This is what lets a bursty sensor feed be capped
// without starving slower-moving topology updates of buffer slots.
func WithBufferCapacityForType(dataType models.DataType, capacity int64) Option {
	return func(p *Pipeline) {
		if p.semByType == nil {
			p.semByType = make(map[models.DataType]*semaphore.Weighted)
		}
		p.semByType[dataType] = semaphore.NewWeighted(capacity)
	}
}

// WithQualityThreshold overrides the minimum accepted quality_score.
func WithQualityThreshold(threshold float64) Option {
	return func(p *Pipeline) { p.qualityThreshold = threshold }
}

// New builds a Pipeline over store, publishing applied mutations on
// bus.
func New(store *graph.Store, bus *fanout.Bus, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:            store,
		bus:              bus,
		defaultSem:       semaphore.NewWeighted(defaultBufferCapacity),
		qualityThreshold: 0,
		lastSeen:         make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// semFor returns the buffer semaphore governing dataType: its own
// class-specific buffer if one was configured, otherwise the shared
// default.
func (p *Pipeline) semFor(dataType models.DataType) *semaphore.Weighted {
	if sem, ok := p.semByType[dataType]; ok {
		return sem
	}
	return p.defaultSem
}

// Ingest validates, orders, and applies a single record. If rec.Deadline
// is set, Ingest waits for a free buffer slot up to that deadline before
// failing with backpressure; otherwise it fails fast when the buffer is
// saturated.
func (p *Pipeline) Ingest(ctx context.Context, rec models.IngestRecord) (err error) {
	defer func() {
		outcome := "accepted"
		if err != nil {
			outcome = "internal"
			if kind, ok := models.KindOf(err); ok {
				outcome = string(kind)
			}
		}
		metrics.IngestionRecordsTotal.WithLabelValues(string(rec.DataType), outcome).Inc()
	}()

	if err := p.validateSchema(rec); err != nil {
		return err
	}
	if rec.QualityScore < p.qualityThreshold {
		return models.LowQuality("ingest.Ingest", "quality_score below configured threshold")
	}
	if rec.Deadline != nil && time.Now().After(*rec.Deadline) {
		return models.InvalidRequest("ingest.Ingest", "deadline already expired")
	}
	hadPrior, prior, err := p.reserveOrdering(rec)
	if err != nil {
		return err
	}
	applied := false
	defer func() {
		if !applied {
			p.rollbackOrdering(rec, hadPrior, prior)
		}
	}()

	sem := p.semFor(rec.DataType)
	acquireCtx := ctx
	var cancel context.CancelFunc
	if rec.Deadline != nil {
		acquireCtx, cancel = context.WithDeadline(ctx, *rec.Deadline)
		defer cancel()
		if err := sem.Acquire(acquireCtx, 1); err != nil {
			return models.Backpressure("ingest.Ingest", "buffer saturated past record deadline")
		}
	} else if !sem.TryAcquire(1) {
		return models.Backpressure("ingest.Ingest", "ingestion buffer saturated")
	}
	defer sem.Release(1)

	if err := p.apply(rec); err != nil {
		return err
	}
	applied = true

	p.bus.Publish(models.TopicGraphMutation, models.BusEvent{
		Timestamp: time.Now(),
		Payload:   rec,
	})
	return nil
}

// IngestBatch offers each record to Ingest independently, tallying
// results. A failure in one record never aborts the others.
func (p *Pipeline) IngestBatch(ctx context.Context, records []models.IngestRecord) models.IngestSummary {
	summary := models.IngestSummary{RejectedByReason: make(map[string]int)}
	for _, rec := range records {
		if err := p.Ingest(ctx, rec); err != nil {
			kind, ok := models.KindOf(err)
			reason := "internal"
			if ok {
				reason = string(kind)
			}
			summary.RejectedByReason[reason]++
			continue
		}
		summary.Accepted++
	}
	return summary
}

func (p *Pipeline) validateSchema(rec models.IngestRecord) error {
	if rec.SourceID == "" {
		return models.InvalidRequest("ingest.validateSchema", "source_id is required")
	}
	if !models.RecognizedDataType(rec.DataType) {
		return nil // passed through to subscribers but not applied; not a validation failure
	}
	switch rec.DataType {
	case models.DataTypeSensorLoad:
		if _, ok := numericField(rec.Payload, "load"); !ok {
			return models.InvalidRequest("ingest.validateSchema", "sensor.load requires numeric 'load'")
		}
	case models.DataTypeSensorHealth:
		if _, ok := numericField(rec.Payload, "health"); !ok {
			return models.InvalidRequest("ingest.validateSchema", "sensor.health requires numeric 'health'")
		}
	case models.DataTypeTopologyNodeUpsert:
		if _, ok := rec.Payload["id"].(string); !ok {
			return models.InvalidRequest("ingest.validateSchema", "topology.node.upsert requires string 'id'")
		}
	case models.DataTypeTopologyNodeRemove:
		if _, ok := rec.Payload["id"].(string); !ok {
			return models.InvalidRequest("ingest.validateSchema", "topology.node.remove requires string 'id'")
		}
	case models.DataTypeTopologyEdgeUpsert, models.DataTypeTopologyEdgeRemove:
		if _, ok := rec.Payload["src"].(string); !ok {
			return models.InvalidRequest("ingest.validateSchema", "topology edge record requires string 'src'")
		}
		if _, ok := rec.Payload["dst"].(string); !ok {
			return models.InvalidRequest("ingest.validateSchema", "topology edge record requires string 'dst'")
		}
	}
	return nil
}

// reserveOrdering enforces §4.D.3: concurrent updates to the same
// source_id apply in timestamp order; an older record loses the race
// and is dropped as stale. The check-and-set is atomic so racing
// Ingest calls for the same source can never both pass it. The
// reservation is provisional: if the caller does not go on to apply
// rec (buffer saturated, apply itself fails), it must call
// rollbackOrdering with the returned prior state so a subsequent
// retry of the identical record is not permanently rejected as stale.
func (p *Pipeline) reserveOrdering(rec models.IngestRecord) (hadPrior bool, prior time.Time, err error) {
	p.orderMu.Lock()
	defer p.orderMu.Unlock()
	last, ok := p.lastSeen[rec.SourceID]
	if ok && !rec.Timestamp.After(last) {
		return false, time.Time{}, models.Stale("ingest.reserveOrdering", "record older than last applied for source_id "+rec.SourceID)
	}
	p.lastSeen[rec.SourceID] = rec.Timestamp
	return ok, last, nil
}

// rollbackOrdering undoes a reservation made by reserveOrdering for a
// record that was never actually applied, but only if nothing newer
// won the ordering race in the meantime.
func (p *Pipeline) rollbackOrdering(rec models.IngestRecord, hadPrior bool, prior time.Time) {
	p.orderMu.Lock()
	defer p.orderMu.Unlock()
	if p.lastSeen[rec.SourceID] != rec.Timestamp {
		return
	}
	if hadPrior {
		p.lastSeen[rec.SourceID] = prior
	} else {
		delete(p.lastSeen, rec.SourceID)
	}
}

// apply derives and performs the graph mutation implied by rec.
// Unrecognized data types reach apply too but fall through to the
// default branch, which logs them and mutates nothing; they are still
// published to fan-out.
func (p *Pipeline) apply(rec models.IngestRecord) error {
	switch rec.DataType {
	case models.DataTypeSensorLoad:
		load, _ := numericField(rec.Payload, "load")
		return p.store.UpdateNode(models.NodeID(rec.SourceID), graph.NodeDelta{Load: &load})
	case models.DataTypeSensorHealth:
		health, _ := numericField(rec.Payload, "health")
		return p.store.UpdateNode(models.NodeID(rec.SourceID), graph.NodeDelta{Health: &health})
	case models.DataTypeTopologyNodeUpsert:
		return p.applyNodeUpsert(rec)
	case models.DataTypeTopologyNodeRemove:
		id, _ := rec.Payload["id"].(string)
		return p.store.RemoveNode(models.NodeID(id))
	case models.DataTypeTopologyEdgeUpsert:
		return p.applyEdgeUpsert(rec)
	case models.DataTypeTopologyEdgeRemove:
		src, _ := rec.Payload["src"].(string)
		dst, _ := rec.Payload["dst"].(string)
		return p.store.RemoveEdge(models.NodeID(src), models.NodeID(dst))
	default:
		logger.Component("ingest").Debug("unrecognized data_type passed through without applying", "data_type", string(rec.DataType))
		return nil
	}
}

func (p *Pipeline) applyNodeUpsert(rec models.IngestRecord) error {
	id, _ := rec.Payload["id"].(string)
	n := &models.Node{ID: models.NodeID(id), Kind: models.NodeKindOther}
	if kind, ok := rec.Payload["kind"].(string); ok {
		n.Kind = models.NodeKind(kind)
	}
	if capacity, ok := numericField(rec.Payload, "capacity"); ok {
		n.Capacity = capacity
	}
	if load, ok := numericField(rec.Payload, "load"); ok {
		n.Load = load
	}
	if health, ok := numericField(rec.Payload, "health"); ok {
		n.Health = health
	} else {
		n.Health = 1
	}

	err := p.store.AddNode(n)
	if err == nil {
		return nil
	}
	if !models.IsKind(err, models.KindConflict) {
		return err
	}
	load := n.Load
	health := n.Health
	return p.store.UpdateNode(n.ID, graph.NodeDelta{Load: &load, Health: &health})
}

func (p *Pipeline) applyEdgeUpsert(rec models.IngestRecord) error {
	src, _ := rec.Payload["src"].(string)
	dst, _ := rec.Payload["dst"].(string)
	e := &models.Edge{Src: models.NodeID(src), Dst: models.NodeID(dst), Strength: 1, PropagationProbability: 1}
	if strength, ok := numericField(rec.Payload, "strength"); ok {
		e.Strength = strength
	}
	if prob, ok := numericField(rec.Payload, "propagation_probability"); ok {
		e.PropagationProbability = prob
	}
	if latency, ok := numericField(rec.Payload, "latency_ms"); ok {
		e.LatencyMS = latency
	}

	err := p.store.AddEdge(e)
	if err == nil {
		return nil
	}
	if !models.IsKind(err, models.KindConflict) {
		return err
	}
	if err := p.store.RemoveEdge(e.Src, e.Dst); err != nil {
		return err
	}
	return p.store.AddEdge(e)
}

func numericField(payload map[string]any, key string) (float64, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
