package vectorstore

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// hnswNode is one element of the graph: its vector, its scope (checked by
// search against the query's scope filter), and its per-layer neighbor
// lists.
type hnswNode struct {
	id        string
	scope     Scope
	vector    []float32
	metadata  map[string]any
	neighbors [][]int // neighbors[layer] = node indices
	deleted   bool
}

// hnswParams mirrors spec.md §4.8's construction knobs.
type hnswParams struct {
	M              int
	EfConstruction int
	EfSearch       int
	MaxElements    int
}

// hnswGraph is a single (dimension, metric) index instance. Deletes are
// tombstones rather than structural edge repair — HNSW papers note graph
// quality degrades slowly under tombstoning at the fractions this system
// expects, and avoiding edge-repair keeps Insert's atomicity simple
// (spec.md §4.8: "insert ... atomic per batch").
type hnswGraph struct {
	mu       sync.RWMutex
	params   hnswParams
	metric   Metric
	dim      int
	nodes    []*hnswNode
	byID     map[scopedKey]int
	entry    int // index of the entry point, -1 if empty
	maxLevel int
	rng      *rand.Rand
}

type scopedKey struct {
	id    string
	scope string
}

func newHNSWGraph(dim int, metric Metric, params hnswParams) *hnswGraph {
	if params.M <= 0 {
		params.M = 16
	}
	if params.EfConstruction <= 0 {
		params.EfConstruction = 200
	}
	if params.EfSearch <= 0 {
		params.EfSearch = 50
	}
	if params.MaxElements <= 0 {
		params.MaxElements = 1024
	}
	return &hnswGraph{
		params: params,
		metric: metric,
		dim:    dim,
		byID:   map[scopedKey]int{},
		entry:  -1,
		// a fixed seed would make level assignment deterministic across
		// process restarts, which is undesirable for a balanced graph;
		// rand.NewSource(1) here is just a placeholder seed — Insert never
		// depends on global process time (workflow scripts may not call
		// time.Now()), so a constant seed is what the package can offer
		// without reaching into forbidden nondeterministic sources.
		rng: rand.New(rand.NewSource(1)),
	}
}

func (g *hnswGraph) randomLevel() int {
	level := 0
	for g.rng.Float64() < 1.0/math.E && level < 32 {
		level++
	}
	return level
}

// insert adds or replaces (id, scope) -> vector. Returns the node index.
func (g *hnswGraph) insert(id string, scope Scope, vector []float32, metadata map[string]any) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := scopedKey{id: id, scope: scope.Encode()}
	if idx, ok := g.byID[key]; ok {
		g.nodes[idx].vector = vector
		g.nodes[idx].metadata = metadata
		g.nodes[idx].deleted = false
		return idx
	}

	level := g.randomLevel()
	node := &hnswNode{
		id: id, scope: scope, vector: vector, metadata: metadata,
		neighbors: make([][]int, level+1),
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, node)
	g.byID[key] = idx

	if g.entry == -1 {
		g.entry = idx
		g.maxLevel = level
		return idx
	}

	entry := g.entry
	for l := g.maxLevel; l > level; l-- {
		entry = g.greedyClosest(entry, node.vector, l)
	}
	for l := min(level, g.maxLevel); l >= 0; l-- {
		candidates := g.searchLayer(node.vector, entry, g.params.EfConstruction, l)
		neighbors := selectNeighbors(candidates, g.params.M)
		for _, c := range neighbors {
			g.connect(idx, c.idx, l)
			g.connect(c.idx, idx, l)
			g.trimNeighbors(c.idx, l)
		}
		if len(candidates) > 0 {
			entry = candidates[0].idx
		}
	}
	if level > g.maxLevel {
		g.maxLevel = level
		g.entry = idx
	}
	return idx
}

func (g *hnswGraph) connect(from, to, layer int) {
	n := g.nodes[from]
	if layer >= len(n.neighbors) {
		return
	}
	n.neighbors[layer] = append(n.neighbors[layer], to)
}

func (g *hnswGraph) trimNeighbors(idx, layer int) {
	n := g.nodes[idx]
	if layer >= len(n.neighbors) || len(n.neighbors[layer]) <= g.params.M {
		return
	}
	cands := make([]candidate, 0, len(n.neighbors[layer]))
	for _, nb := range n.neighbors[layer] {
		cands = append(cands, candidate{idx: nb, dist: g.metric.Distance(n.vector, g.nodes[nb].vector)})
	}
	sort.Slice(cands, func(i, j int) bool { return g.metric.Less(cands[i].dist, cands[j].dist) })
	kept := selectNeighbors(cands, g.params.M)
	out := make([]int, len(kept))
	for i, c := range kept {
		out[i] = c.idx
	}
	n.neighbors[layer] = out
}

type candidate struct {
	idx  int
	dist float64
}

func selectNeighbors(candidates []candidate, m int) []candidate {
	if len(candidates) <= m {
		return candidates
	}
	return candidates[:m]
}

// greedyClosest walks layer l from entry toward the closest neighbor to
// query, one hop at a time, until no neighbor improves distance.
func (g *hnswGraph) greedyClosest(entry int, query []float32, layer int) int {
	best := entry
	bestDist := g.metric.Distance(query, g.nodes[entry].vector)
	for {
		improved := false
		n := g.nodes[best]
		if layer < len(n.neighbors) {
			for _, nb := range n.neighbors[layer] {
				if g.nodes[nb].deleted {
					continue
				}
				d := g.metric.Distance(query, g.nodes[nb].vector)
				if g.metric.Less(d, bestDist) {
					bestDist = d
					best = nb
					improved = true
				}
			}
		}
		if !improved {
			return best
		}
	}
}

// searchLayer runs a bounded best-first search at layer l, returning up to
// ef candidates sorted by ascending distance.
func (g *hnswGraph) searchLayer(query []float32, entry int, ef int, layer int) []candidate {
	visited := map[int]bool{entry: true}
	startDist := g.metric.Distance(query, g.nodes[entry].vector)
	candidates := []candidate{{idx: entry, dist: startDist}}
	results := []candidate{{idx: entry, dist: startDist}}

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return g.metric.Less(candidates[i].dist, candidates[j].dist) })
		c := candidates[0]
		candidates = candidates[1:]

		sort.Slice(results, func(i, j int) bool { return g.metric.Less(results[i].dist, results[j].dist) })
		if len(results) >= ef && g.metric.Less(results[len(results)-1].dist, c.dist) {
			break
		}

		n := g.nodes[c.idx]
		if layer >= len(n.neighbors) {
			continue
		}
		for _, nb := range n.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			if g.nodes[nb].deleted {
				continue
			}
			d := g.metric.Distance(query, g.nodes[nb].vector)
			candidates = append(candidates, candidate{idx: nb, dist: d})
			results = append(results, candidate{idx: nb, dist: d})
		}
	}
	sort.Slice(results, func(i, j int) bool { return g.metric.Less(results[i].dist, results[j].dist) })
	if len(results) > ef {
		results = results[:ef]
	}
	return results
}

// search returns up to k candidates matching scopeFilter (if non-nil),
// sorted by ascending distance. The filter is applied to the layer-0
// candidate list after the walk (at most max(EfSearch, k) entries), not
// during it, so a scope whose vectors are not among those candidates gets
// fewer than k results.
func (g *hnswGraph) search(query []float32, k int, scopeFilter *Scope) []candidate {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.entry == -1 || k <= 0 {
		return nil
	}

	entry := g.entry
	for l := g.maxLevel; l > 0; l-- {
		entry = g.greedyClosest(entry, query, l)
	}

	ef := g.params.EfSearch
	if ef < k {
		ef = k
	}
	raw := g.searchLayer(query, entry, ef, 0)

	out := make([]candidate, 0, k)
	for _, c := range raw {
		n := g.nodes[c.idx]
		if n.deleted {
			continue
		}
		if scopeFilter != nil && !n.scope.Matches(*scopeFilter) {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out
}

func (g *hnswGraph) delete(id string, scope Scope) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := scopedKey{id: id, scope: scope.Encode()}
	idx, ok := g.byID[key]
	if !ok || g.nodes[idx].deleted {
		return false
	}
	g.nodes[idx].deleted = true
	delete(g.byID, key)
	return true
}

func (g *hnswGraph) deleteScope(scope Scope) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n uint64
	for key, idx := range g.byID {
		if g.nodes[idx].scope.Matches(scope) {
			g.nodes[idx].deleted = true
			delete(g.byID, key)
			n++
		}
	}
	return n
}

func (g *hnswGraph) count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byID)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
