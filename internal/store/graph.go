package store

import (
	"math"
	"sort"

	"github.com/coder/hnsw"
)

// compactThreshold is the orphan count above which the graph is rebuilt
// from the live vectors.
const compactThreshold = 256

// vectorIndex is an HNSW graph keyed by internal uint64 keys with a string
// ID mapping. coder/hnsw misbehaves when the last node is deleted, so
// removals only drop the mapping and leave an orphan node in the graph.
type vectorIndex struct {
	m        int
	efSearch int

	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	vectors map[string][]float32
	nextKey uint64
}

func newVectorIndex(m, efSearch int) *vectorIndex {
	if m <= 0 {
		m = 16
	}
	if efSearch <= 0 {
		efSearch = 20
	}
	v := &vectorIndex{m: m, efSearch: efSearch}
	v.reset()
	return v
}

func (v *vectorIndex) reset() {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = v.m
	g.EfSearch = v.efSearch
	g.Ml = 0.25
	v.graph = g
	v.idMap = make(map[string]uint64)
	v.keyMap = make(map[uint64]string)
	v.vectors = make(map[string][]float32)
	v.nextKey = 0
}

// dims returns the vector length of the live entries, or 0 when empty.
func (v *vectorIndex) dims() int {
	for _, vec := range v.vectors {
		return len(vec)
	}
	return 0
}

func (v *vectorIndex) len() int { return len(v.idMap) }

func (v *vectorIndex) orphans() int { return v.graph.Len() - len(v.idMap) }

// add inserts or replaces id. The vector is copied and normalized.
func (v *vectorIndex) add(id string, vector []float32) {
	if key, ok := v.idMap[id]; ok {
		delete(v.keyMap, key)
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	key := v.nextKey
	v.nextKey++
	v.graph.Add(hnsw.MakeNode(key, vec))
	v.idMap[id] = key
	v.keyMap[key] = id
	v.vectors[id] = vec
}

func (v *vectorIndex) remove(id string) {
	key, ok := v.idMap[id]
	if !ok {
		return
	}
	delete(v.keyMap, key)
	delete(v.idMap, id)
	delete(v.vectors, id)
	if len(v.idMap) == 0 {
		v.reset()
		return
	}
	if v.orphans() > compactThreshold && v.orphans() > len(v.idMap) {
		v.compact()
	}
}

// compact rebuilds the graph without orphan nodes.
func (v *vectorIndex) compact() {
	live := v.vectors
	v.reset()
	ids := make([]string, 0, len(live))
	for id := range live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v.add(id, live[id])
	}
}

type scored struct {
	id       string
	distance float32
}

// search returns up to k live IDs nearest to query.
func (v *vectorIndex) search(query []float32, k int) []scored {
	if k <= 0 || len(v.idMap) == 0 {
		return nil
	}
	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	// Orphans can occupy result slots, so ask for enough nodes to cover them.
	want := min(k+v.orphans(), v.graph.Len())
	nodes := v.graph.Search(q, want)

	out := make([]scored, 0, k)
	for _, n := range nodes {
		id, ok := v.keyMap[n.Key]
		if !ok {
			continue
		}
		out = append(out, scored{id: id, distance: hnsw.CosineDistance(q, n.Value)})
	}
	if len(out) == 0 {
		out = v.exact(q, k)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].distance < out[j].distance })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// exact scores every live vector. Used when the graph yields nothing.
func (v *vectorIndex) exact(q []float32, k int) []scored {
	out := make([]scored, 0, len(v.vectors))
	for id, vec := range v.vectors {
		out = append(out, scored{id: id, distance: hnsw.CosineDistance(q, vec)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].distance == out[j].distance {
			return out[i].id < out[j].id
		}
		return out[i].distance < out[j].distance
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore maps cosine distance in [0, 2] to a similarity in [0, 1].
func distanceToScore(d float32) float32 {
	return 1 - d/2
}
