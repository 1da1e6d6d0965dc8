package chunker

import (
	"strconv"
	"strings"

	"assistant/internal/domain"
)

// Unit selects what a window is measured in.
type Unit string

const (
	UnitWords Unit = "words"
	UnitChars Unit = "chars"
)

// WindowChunker splits text into fixed-size contiguous windows. It does not
// look for sentence or paragraph boundaries.
type WindowChunker struct {
	unit    Unit
	size    int
	overlap int
}

func NewWindowChunker(unit Unit, size, overlap int) *WindowChunker {
	if unit != UnitChars {
		unit = UnitWords
	}
	if size <= 0 {
		size = 400
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &WindowChunker{unit: unit, size: size, overlap: overlap}
}

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, nil
	}
	var texts []string
	if c.unit == UnitChars {
		runes := []rune(document.Content)
		texts = c.windows(len(runes), func(i, j int) string {
			return string(runes[i:j])
		})
	} else {
		words := strings.Fields(document.Content)
		texts = c.windows(len(words), func(i, j int) string {
			return strings.Join(words[i:j], " ")
		})
	}
	chunks := make([]domain.Chunk, 0, len(texts))
	for idx, text := range texts {
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Text:       text,
			Index:      idx,
		})
	}
	return chunks, nil
}

func (c *WindowChunker) windows(n int, slice func(i, j int) string) []string {
	var out []string
	step := c.size - c.overlap
	for i := 0; i < n; i += step {
		end := i + c.size
		if end > n {
			end = n
		}
		out = append(out, slice(i, end))
		if end == n {
			break
		}
	}
	return out
}
