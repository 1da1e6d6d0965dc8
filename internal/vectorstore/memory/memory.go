package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"assistant/internal/domain"
	"assistant/internal/vectorstore"
)

var (
	ErrInvalidDimension  = errors.New("invalid dimension")
	ErrLengthMismatch    = errors.New("chunks and vectors length mismatch")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	norms     []float64
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{} }

// Factory returns a vectorstore.Factory producing fresh in-memory stores.
func Factory() vectorstore.Factory {
	return func(string) vectorstore.Storage { return NewStorage() }
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.norms = nil
	s.chunks = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return ErrLengthMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return ErrDimensionMismatch
		}
	}
	for _, v := range vectors {
		s.norms = append(s.norms, norm(v))
	}
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

// Search returns up to topK chunks by descending cosine similarity. Equal
// scores keep insertion order. Zero-magnitude vectors never match, on either
// side.
func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 3
	}
	qn := norm(vector)
	if qn == 0 || len(s.vectors) == 0 {
		return nil, nil
	}
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, 0, len(s.vectors))
	for i := range s.vectors {
		if s.norms[i] == 0 {
			continue
		}
		scores = append(scores, scored{i, dot(s.vectors[i], vector) / (s.norms[i] * qn)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, sc := range scores[:topK] {
		results = append(results, domain.SearchResult{Chunk: s.chunks[sc.idx], Score: sc.score})
	}
	return results, nil
}

// Len returns the number of stored chunks.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Storage) Drop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.norms = nil
	s.chunks = nil
	return nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}
