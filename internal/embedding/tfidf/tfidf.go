package tfidf

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"assistant/internal/embedding"
)

var (
	ErrEmptyCorpus = errors.New("empty corpus for TF-IDF fit")
	ErrNotPrepared = errors.New("tfidf embedder not prepared")
)

// Embedder implements a simple TF-IDF vectorizer.
// A prepared Embedder is immutable and safe for concurrent use.
type Embedder struct {
	vocabulary   map[string]int
	idf          []float64
	prepared     bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates an unprepared TF-IDF embedder. Use Fit to obtain one
// that can embed text.
func NewEmbedder() *Embedder {
	return &Embedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Fit builds the vocabulary and IDF values from corpus.
func (e *Embedder) Fit(corpus []string) (embedding.Embedder, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Sorted terms keep vector layout stable across runs
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	fitted := &Embedder{
		vocabulary:   make(map[string]int, len(terms)),
		idf:          make([]float64, len(terms)),
		prepared:     true,
		tokenPattern: e.tokenPattern,
		stopwords:    e.stopwords,
	}
	n := float64(len(corpus))
	for i, term := range terms {
		fitted.vocabulary[term] = i
		// Smoothed IDF
		fitted.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return fitted, nil
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return len(e.idf) }

// Embed computes the L2-normalized TF-IDF vector for text. Text without any
// known term yields a zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	if !e.prepared {
		return nil, ErrNotPrepared
	}
	vec := make([]float64, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "how", "do", "does", "did", "you", "your", "i", "me", "my", "we", "our",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
