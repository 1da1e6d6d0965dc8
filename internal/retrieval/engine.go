package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"assistant/internal/domain"
	"assistant/internal/embedding"
	"assistant/internal/vectorstore"
)

var (
	ErrNoChunks          = errors.New("document produced no chunks")
	ErrDimensionMismatch = errors.New("embedding dimension changed within one document")
)

// DefaultTopK is used when Config.TopK is not positive.
const DefaultTopK = 3

type Config struct {
	TopK     int
	MinScore float64
}

// snapshot is an immutable, fully built index. Queries always use the
// embedder the snapshot was built with. A replaced snapshot stays searchable
// until its last reader releases it.
type snapshot struct {
	name     string
	embedder embedding.Embedder
	store    vectorstore.Storage
	chunks   []domain.Chunk

	mu      sync.Mutex
	readers int
	retired bool
	dropped bool
}

// Engine owns the document index of one scope and answers top-k queries.
// Index replaces the whole snapshot atomically, so a concurrent Retrieve
// sees either the previous document or the new one, never a mix.
type Engine struct {
	l        *zap.Logger
	name     string
	chunker  domain.Chunker
	embedder embedding.Embedder
	factory  vectorstore.Factory
	cfg      Config

	buildMu sync.Mutex
	version uint64
	current atomic.Pointer[snapshot]
}

func NewEngine(l *zap.Logger, name string, chunker domain.Chunker, embedder embedding.Embedder, factory vectorstore.Factory, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Engine{
		l:        l,
		name:     name,
		chunker:  chunker,
		embedder: embedder,
		factory:  factory,
		cfg:      cfg,
	}
}

// Index chunks and embeds doc, then publishes it as the current snapshot.
// It returns the number of indexed chunks.
func (e *Engine) Index(ctx context.Context, doc domain.Document) (int, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	chunks, err := e.chunker.Chunk(doc)
	if err != nil {
		return 0, fmt.Errorf("chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return 0, ErrNoChunks
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	emb, err := embedding.Prepare(e.embedder, texts)
	if err != nil {
		return 0, fmt.Errorf("prepare embedder: %w", err)
	}

	vectors := make([][]float64, len(chunks))
	for i, text := range texts {
		vec, err := emb.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		if i > 0 && len(vec) != len(vectors[0]) {
			return 0, ErrDimensionMismatch
		}
		vectors[i] = vec
	}

	e.version++
	name := fmt.Sprintf("%s_v%d", e.name, e.version)
	store := e.factory(name)
	if err := store.Init(ctx, len(vectors[0])); err != nil {
		return 0, fmt.Errorf("init vector store: %w", err)
	}
	if err := store.Upsert(ctx, chunks, vectors); err != nil {
		_ = store.Drop(ctx)
		return 0, fmt.Errorf("upsert vectors: %w", err)
	}

	prev := e.current.Swap(&snapshot{name: name, embedder: emb, store: store, chunks: chunks})
	_ = e.retire(ctx, prev)

	e.l.Info("Document indexed",
		zap.String("index", name),
		zap.String("embedder", emb.Name()),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

// Retrieve returns the configured top-k chunks for query.
func (e *Engine) Retrieve(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return e.RetrieveK(ctx, query, e.cfg.TopK)
}

// RetrieveK ranks indexed chunks against query. An empty index or a query
// whose embedding has zero magnitude yields no results and no error.
func (e *Engine) RetrieveK(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	snap := e.acquire()
	if snap == nil {
		return nil, nil
	}
	defer e.release(ctx, snap)
	if len(snap.chunks) == 0 {
		return nil, nil
	}
	vec, err := snap.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if isZero(vec) {
		return nil, nil
	}
	res, err := snap.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	out := res[:0]
	for _, r := range res {
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) || r.Score < e.cfg.MinScore {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Len returns the number of chunks in the current snapshot.
func (e *Engine) Len() int {
	snap := e.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.chunks)
}

// Chunks returns the current snapshot's chunks in document order.
func (e *Engine) Chunks() []domain.Chunk {
	snap := e.current.Load()
	if snap == nil {
		return nil
	}
	out := make([]domain.Chunk, len(snap.chunks))
	copy(out, snap.chunks)
	return out
}

// Close retires the current snapshot. Its store is dropped once in-flight
// queries finish.
func (e *Engine) Close(ctx context.Context) error {
	return e.retire(ctx, e.current.Swap(nil))
}

// acquire pins the current snapshot for one query. A snapshot that was
// dropped between Load and pinning is already replaced, so it retries.
func (e *Engine) acquire() *snapshot {
	for {
		snap := e.current.Load()
		if snap == nil {
			return nil
		}
		snap.mu.Lock()
		if !snap.dropped {
			snap.readers++
			snap.mu.Unlock()
			return snap
		}
		snap.mu.Unlock()
	}
}

func (e *Engine) release(ctx context.Context, snap *snapshot) {
	snap.mu.Lock()
	snap.readers--
	drop := snap.retired && snap.readers == 0 && !snap.dropped
	if drop {
		snap.dropped = true
	}
	snap.mu.Unlock()
	if drop {
		_ = e.drop(context.WithoutCancel(ctx), snap)
	}
}

// retire marks a replaced snapshot and drops it right away when no query
// holds it.
func (e *Engine) retire(ctx context.Context, snap *snapshot) error {
	if snap == nil {
		return nil
	}
	snap.mu.Lock()
	snap.retired = true
	drop := snap.readers == 0 && !snap.dropped
	if drop {
		snap.dropped = true
	}
	snap.mu.Unlock()
	if !drop {
		return nil
	}
	return e.drop(ctx, snap)
}

func (e *Engine) drop(ctx context.Context, snap *snapshot) error {
	if err := snap.store.Drop(ctx); err != nil {
		e.l.Warn("Failed to drop retired index", zap.String("index", snap.name), zap.Error(err))
		return err
	}
	e.l.Debug("Retired index dropped", zap.String("index", snap.name))
	return nil
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
