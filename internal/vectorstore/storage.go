package vectorstore

import (
	"context"

	"assistant/internal/domain"
)

// Storage holds the vectors of one index snapshot and supports similarity
// search. A snapshot is filled once (Init, Upsert) and then only searched;
// Drop releases it after a newer snapshot has replaced it.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error)
	Drop(ctx context.Context) error
}

// Factory creates an empty Storage. name is unique per snapshot and may be
// used by remote stores as a collection name.
type Factory func(name string) Storage
