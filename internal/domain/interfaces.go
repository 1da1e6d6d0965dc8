package domain

// Document is an uploaded file after text extraction.
type Document struct {
	ID      string
	Name    string
	Content string
}

// Chunk is a fixed-size span of a document used for retrieval.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}
