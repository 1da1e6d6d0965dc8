package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"assistant/internal/domain"
	"assistant/internal/vectorstore"
)

var (
	ErrInvalidDimension = errors.New("invalid dimension")
	ErrLengthMismatch   = errors.New("chunks and vectors length mismatch")
)

// pointNamespace derives stable point UUIDs from chunk ids; Qdrant only
// accepts integers or UUIDs as point ids.
var pointNamespace = uuid.MustParse("6f1d1f3c-8b7e-4c59-9a43-2d1c61b3e0a7")

// Storage is a minimal REST client to one Qdrant collection.
// It assumes cosine distance and creates the collection on Init.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Factory returns a vectorstore.Factory that gives each snapshot its own
// collection, named <Collection>_<name>.
func Factory(cfg Config) vectorstore.Factory {
	return func(name string) vectorstore.Storage {
		c := cfg
		c.Collection = fmt.Sprintf("%s_%s", cfg.Collection, name)
		return NewStorage(c)
	}
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return ErrLengthMismatch
	}
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			"id":     uuid.NewSHA1(pointNamespace, []byte(chunks[i].ChunkID)).String(),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": chunks[i].DocumentID,
				"chunk_id":    chunks[i].ChunkID,
				"index":       chunks[i].Index,
				"text":        chunks[i].Text,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := domain.Chunk{}
		if v, ok := r.Payload["document_id"].(string); ok {
			chunk.DocumentID = v
		}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			chunk.ChunkID = v
		}
		if v, ok := r.Payload["index"].(float64); ok {
			chunk.Index = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

// Drop deletes the collection.
func (s *Storage) Drop(ctx context.Context) error {
	return s.do(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil, nil)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
