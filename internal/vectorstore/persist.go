package vectorstore

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// Metadata values arrive as decoded JSON (map[string]any), whose concrete
// element types gob must know about up front since they're carried through
// an interface{} field.
func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register("")
	gob.Register(float64(0))
	gob.Register(false)
}

// formatVersion is bumped whenever the on-disk layout changes
// incompatibly (spec.md §4.8: "on load, if version mismatches, reject with
// IncompatibleFormat, never silently rebuild"). encoding/gob plus this
// fixed-width version prefix stands in for a third-party binary/columnar
// serialization library: nothing in the retrieval pack wires one for a
// blob shaped like this (the pack's storage deps — pgx, lib/pq,
// modernc.org/sqlite, go-sql-driver/mysql — are all SQL drivers for the
// separate KeyValueStore contract, not for index blobs).
const formatVersion uint32 = 1

// ErrIncompatibleFormat is returned by Load when the on-disk version prefix
// doesn't match formatVersion.
type ErrIncompatibleFormat struct {
	Found, Expected uint32
}

func (e *ErrIncompatibleFormat) Error() string {
	return fmt.Sprintf("vectorstore: incompatible index format (found v%d, expected v%d)", e.Found, e.Expected)
}

// nodeRecord is the gob-serializable projection of hnswNode.
type nodeRecord struct {
	ID        string
	Scope     string
	Vector    []float32
	Metadata  map[string]any
	Neighbors [][]int
	Deleted   bool
}

// graphRecord is the gob-serializable projection of one hnswGraph.
type graphRecord struct {
	Dimension int
	Metric    string
	Params    hnswParams
	Entry     int
	MaxLevel  int
	Nodes     []nodeRecord
}

func (g *hnswGraph) toRecord(dim int) graphRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec := graphRecord{
		Dimension: dim,
		Metric:    g.metric.String(),
		Params:    g.params,
		Entry:     g.entry,
		MaxLevel:  g.maxLevel,
		Nodes:     make([]nodeRecord, len(g.nodes)),
	}
	for i, n := range g.nodes {
		rec.Nodes[i] = nodeRecord{
			ID: n.id, Scope: n.scope.Encode(), Vector: n.vector,
			Metadata: n.metadata, Neighbors: n.neighbors, Deleted: n.deleted,
		}
	}
	return rec
}

func graphFromRecord(rec graphRecord) (*hnswGraph, error) {
	metric, ok := ParseMetric(rec.Metric)
	if !ok {
		return nil, fmt.Errorf("vectorstore: unknown persisted metric %q", rec.Metric)
	}
	g := newHNSWGraph(rec.Dimension, metric, rec.Params)
	g.entry = rec.Entry
	g.maxLevel = rec.MaxLevel
	g.nodes = make([]*hnswNode, len(rec.Nodes))
	for i, nr := range rec.Nodes {
		scope, err := ParseScope(nr.Scope)
		if err != nil {
			return nil, err
		}
		g.nodes[i] = &hnswNode{
			id: nr.ID, scope: scope, vector: nr.Vector,
			metadata: nr.Metadata, neighbors: nr.Neighbors, deleted: nr.Deleted,
		}
		if !nr.Deleted {
			g.byID[scopedKey{id: nr.ID, scope: nr.Scope}] = i
		}
	}
	return g, nil
}

// Persist writes every (dimension, metric) index this store manages to its
// own file under dir, named "<dimension>-<metric>.idx" (spec.md §6:
// "<data_dir>/vectors/<dimension>-<metric>.idx").
func (s *Store) Persist(dir string) error {
	s.mu.RLock()
	type pending struct {
		key indexKey
		g   *hnswGraph
	}
	all := make([]pending, 0, len(s.graphs))
	for k, g := range s.graphs {
		all = append(all, pending{key: k, g: g})
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorstore: persist mkdir: %w", err)
	}
	for _, p := range all {
		path := fmt.Sprintf("%s/%d-%s.idx", dir, p.key.dimension, p.key.metric)
		if err := writeIndexFile(path, p.g.toRecord(p.key.dimension)); err != nil {
			return err
		}
	}
	return nil
}

func writeIndexFile(path string, rec graphRecord) error {
	f, err := os.CreateTemp(dirOf(path), "index-*.tmp")
	if err != nil {
		return fmt.Errorf("vectorstore: create temp: %w", err)
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(f)
	var versionBuf [4]byte
	binary.BigEndian.PutUint32(versionBuf[:], formatVersion)
	if _, err := w.Write(versionBuf[:]); err != nil {
		f.Close()
		return err
	}
	if err := gob.NewEncoder(w).Encode(rec); err != nil {
		f.Close()
		return fmt.Errorf("vectorstore: encode: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Load reads one index file back into this store, replacing any in-memory
// index for the same (dimension, metric). Returns *ErrIncompatibleFormat on
// a version mismatch rather than attempting to interpret the bytes.
func (s *Store) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vectorstore: open %s: %w", path, err)
	}
	defer f.Close()

	var versionBuf [4]byte
	if _, err := io.ReadFull(f, versionBuf[:]); err != nil {
		return fmt.Errorf("vectorstore: read version: %w", err)
	}
	version := binary.BigEndian.Uint32(versionBuf[:])
	if version != formatVersion {
		return &ErrIncompatibleFormat{Found: version, Expected: formatVersion}
	}

	var rec graphRecord
	if err := gob.NewDecoder(f).Decode(&rec); err != nil {
		return fmt.Errorf("vectorstore: decode: %w", err)
	}
	g, err := graphFromRecord(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs[indexKey{dimension: rec.Dimension, metric: g.metric}] = g
	return nil
}

func dirOf(path string) string {
	idx := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			idx = i
			break
		}
	}
	if idx == -1 {
		return "."
	}
	return path[:idx]
}
