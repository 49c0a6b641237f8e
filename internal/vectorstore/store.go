package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrDimensionMismatch is returned by Insert when a batch mixes vector
// lengths and by Search for an empty query vector (spec.md §7). Each vector
// length selects its own index, so no other length is rejected.
var ErrDimensionMismatch = errors.New("vectorstore: dimension mismatch")

// Entry mirrors spec.md §3's Vector entry.
type Entry struct {
	ID        string
	Scope     Scope
	Vector    []float32
	Metadata  map[string]any
	CreatedAt time.Time
}

// Query mirrors spec.md §3's Vector query.
type Query struct {
	Vector      []float32
	K           int
	ScopeFilter *Scope
	Threshold   *float64
}

// Result is one hit returned by Search.
type Result struct {
	ID       string
	Distance float64
	Scope    Scope
	Metadata map[string]any
}

// Stats mirrors spec.md §4.8's stats() reply.
type Stats struct {
	Count       int
	MemoryBytes int64
	Dimension   int
}

type indexKey struct {
	dimension int
	metric    Metric
}

// Store is the tenant-scoped HNSW store (spec.md §4.8): one hnswGraph per
// (dimension, metric) pair, batch insert with bounded internal
// parallelism, and a persistence hook. The public API is synchronous even
// though Insert parallelizes internally (spec.md §5: "presents a
// synchronous Insert API").
type Store struct {
	mu     sync.RWMutex
	params hnswParams
	graphs map[indexKey]*hnswGraph

	parallelBatchSize int
}

// New builds an empty Store. m/efConstruction/efSearch/maxElements are the
// spec.md §4.8 defaults unless overridden; parallelBatchSize bounds
// within-batch insert parallelism.
func New(m, efConstruction, efSearch, maxElements, parallelBatchSize int) *Store {
	if parallelBatchSize <= 0 {
		parallelBatchSize = 8
	}
	return &Store{
		params: hnswParams{M: m, EfConstruction: efConstruction, EfSearch: efSearch, MaxElements: maxElements},
		graphs: map[indexKey]*hnswGraph{},
		parallelBatchSize: parallelBatchSize,
	}
}

func (s *Store) graphFor(dim int, metric Metric) *hnswGraph {
	key := indexKey{dimension: dim, metric: metric}
	s.mu.RLock()
	g, ok := s.graphs[key]
	s.mu.RUnlock()
	if ok {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok = s.graphs[key]; ok {
		return g
	}
	g = newHNSWGraph(dim, metric, s.params)
	s.graphs[key] = g
	return g
}

// Insert atomically inserts a batch of entries into their respective
// (dimension, metric) graphs, returning IDs in input order (spec.md §4.8).
// metric applies to the whole batch since Entry itself doesn't carry a
// metric — callers pick the metric the index is queried with.
func (s *Store) Insert(ctx context.Context, metric Metric, entries []Entry) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	dim := len(entries[0].Vector)
	for _, e := range entries {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("%w: entry %q has %d dims, batch is %d", ErrDimensionMismatch, e.ID, len(e.Vector), dim)
		}
	}

	g := s.graphFor(dim, metric)
	ids := make([]string, len(entries))

	grp, _ := errgroup.WithContext(ctx)
	grp.SetLimit(s.parallelBatchSize)
	for i, e := range entries {
		i, e := i, e
		grp.Go(func() error {
			g.insert(e.ID, e.Scope, e.Vector, e.Metadata)
			ids[i] = e.ID
			return nil
		})
	}
	_ = grp.Wait()
	return ids, nil
}

// Search returns at most q.K results ordered by ascending distance (spec.md
// §4.8); k=0 or an empty index both yield an empty, non-error result.
func (s *Store) Search(metric Metric, q Query) ([]Result, error) {
	if q.K == 0 {
		return nil, nil
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrDimensionMismatch)
	}
	g := s.graphFor(len(q.Vector), metric)
	raw := g.search(q.Vector, q.K, q.ScopeFilter)

	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Result, 0, len(raw))
	for _, c := range raw {
		if q.Threshold != nil && !metric.Less(c.dist, *q.Threshold) && c.dist != *q.Threshold {
			continue
		}
		n := g.nodes[c.idx]
		out = append(out, Result{ID: n.id, Distance: c.dist, Scope: n.scope, Metadata: n.metadata})
	}
	// Tie-break on id for deterministic ordering among equal distances
	// (spec.md §8 scenario 4: "order by tie-break on id").
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance == out[j].Distance {
			return out[i].ID < out[j].ID
		}
		return metric.Less(out[i].Distance, out[j].Distance)
	})
	return out, nil
}

// Delete removes a single (id, scope, dimension, metric) entry, reporting
// whether it existed.
func (s *Store) Delete(dimension int, metric Metric, id string, scope Scope) bool {
	g := s.graphFor(dimension, metric)
	return g.delete(id, scope)
}

// DeleteScope removes every vector under scope across every (dimension,
// metric) index this store manages, returning the total removed.
func (s *Store) DeleteScope(scope Scope) uint64 {
	s.mu.RLock()
	graphs := make([]*hnswGraph, 0, len(s.graphs))
	for _, g := range s.graphs {
		graphs = append(graphs, g)
	}
	s.mu.RUnlock()

	var total uint64
	for _, g := range graphs {
		total += g.deleteScope(scope)
	}
	return total
}

// StatsFor reports Stats for one (dimension, metric) index, creating an
// empty index (Count 0) if that index doesn't exist yet.
func (s *Store) StatsFor(dimension int, metric Metric) Stats {
	g := s.graphFor(dimension, metric)
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Stats{
		Count:       g.count(),
		MemoryBytes: int64(len(g.nodes)) * int64(dimension) * 4,
		Dimension:   dimension,
	}
}
