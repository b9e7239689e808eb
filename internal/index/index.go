package index

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdfqa/internal/domain"
)

// Distance metrics.
const (
	MetricCosine = "cosine"
	MetricL2     = "l2"
)

// Index is an exact nearest-neighbour index over (vector, chunk) entries.
// Every vector has the same dimension; the index is read-only between builds
// and safe for concurrent queries.
type Index struct {
	mu           sync.RWMutex
	dimension    int
	metric       string
	embedderName string
	buildID      string
	createdAt    time.Time
	entries      []domain.Entry
}

// New creates an empty index for vectors of the given dimension.
// embedderName records which embedder produced the vectors.
func New(dimension int, metric, embedderName string) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: index dimension must be positive, got %d", domain.ErrConfig, dimension)
	}
	if metric == "" {
		metric = MetricCosine
	}
	if metric != MetricCosine && metric != MetricL2 {
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrConfig, metric)
	}
	return &Index{dimension: dimension, metric: metric, embedderName: embedderName}, nil
}

// Build replaces the contents of the index. Nothing changes unless every
// vector has the index dimension.
func (ix *Index) Build(entries []domain.Entry) error {
	for i, e := range entries {
		if len(e.Vector) != ix.dimension {
			return fmt.Errorf("%w: entry %d (%s) has %d values, index expects %d", domain.ErrDimensionMismatch, i, e.Chunk.ChunkID, len(e.Vector), ix.dimension)
		}
	}
	copied := make([]domain.Entry, len(entries))
	for i, e := range entries {
		copied[i] = domain.Entry{Vector: append([]float64(nil), e.Vector...), Chunk: e.Chunk}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = copied
	ix.buildID = uuid.NewString()
	ix.createdAt = time.Now().UTC()
	return nil
}

// Query returns up to k entries closest to vector, ordered by ascending
// distance. Ties keep insertion order. k <= 0 returns no results.
func (ix *Index) Query(vector []float64, k int) ([]domain.QueryResult, error) {
	if len(vector) != ix.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d", domain.ErrDimensionMismatch, len(vector), ix.dimension)
	}
	if k <= 0 {
		return []domain.QueryResult{}, nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	dist := distanceFunc(ix.metric)
	distances := make([]float64, len(ix.entries))
	for i := range ix.entries {
		distances[i] = dist(ix.entries[i].Vector, vector)
	}
	idxs := make([]int, len(distances))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return distances[idxs[a]] < distances[idxs[b]] })
	if k > len(idxs) {
		k = len(idxs)
	}
	results := make([]domain.QueryResult, 0, k)
	for i := 0; i < k; i++ {
		j := idxs[i]
		results = append(results, domain.QueryResult{Rank: i + 1, Chunk: ix.entries[j].Chunk, Distance: distances[j]})
	}
	return results, nil
}

// Len returns the number of entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// DocumentCount returns how many distinct documents contributed chunks.
func (ix *Index) DocumentCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range ix.entries {
		seen[e.Chunk.DocumentID] = struct{}{}
	}
	return len(seen)
}

// Dimension returns the vector length every entry has.
func (ix *Index) Dimension() int { return ix.dimension }

// Metric returns the distance metric name.
func (ix *Index) Metric() string { return ix.metric }

// EmbedderName returns the name of the embedder that produced the vectors.
func (ix *Index) EmbedderName() string { return ix.embedderName }

// BuildID identifies the last Build; it survives Persist and Load.
func (ix *Index) BuildID() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.buildID
}

func distanceFunc(metric string) func(a, b []float64) float64 {
	if metric == MetricL2 {
		return euclidean
	}
	return cosineDistance
}

// cosineDistance is 1 - cos(a, b); a zero vector is at distance 1 from everything.
func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
