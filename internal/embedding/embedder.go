package embedding

import "context"

// Embedder converts free text into a numeric vector representation.
// Identical input must give identical output for the lifetime of an index.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Fitter is implemented by embedders that learn from the indexed corpus.
// Fit returns a new prepared embedder and leaves the receiver untouched, so
// an index that is still being queried keeps its own vocabulary.
type Fitter interface {
	Fit(corpus []string) (Embedder, error)
}

// Prepare fits e on corpus when it supports fitting and returns e otherwise.
func Prepare(e Embedder, corpus []string) (Embedder, error) {
	if f, ok := e.(Fitter); ok {
		return f.Fit(corpus)
	}
	return e, nil
}
