package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"assistant/internal/generator"
)

var (
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// Generator answers offline by quoting the context sentences that share the
// most terms with the question. Among equally matching sentences, the ones
// with more frequent context terms win.
type Generator struct {
	maxSentences int
	stopwords    map[string]struct{}
}

func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 2
	}
	return &Generator{maxSentences: maxSentences, stopwords: defaultStopwords()}
}

// Generate returns generator.ErrNoAnswer when no sentence mentions any
// question term.
func (g *Generator) Generate(ctx context.Context, query string, chunks []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	queryTerms := make(map[string]struct{})
	for _, tok := range g.tokens(query) {
		queryTerms[tok] = struct{}{}
	}
	if len(queryTerms) == 0 {
		return "", generator.ErrNoAnswer
	}

	var sentences []string
	for _, chunk := range chunks {
		found := sentencePattern.FindAllString(chunk, -1)
		if len(found) == 0 && strings.TrimSpace(chunk) != "" {
			found = []string{chunk}
		}
		for _, s := range found {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
	}

	// Word frequencies over the whole context, normalized to [0,1]
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range g.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type scored struct {
		idx     int
		overlap int
		weight  float64
	}
	var candidates []scored
	for i, sent := range sentences {
		toks := g.tokens(sent)
		seen := make(map[string]struct{}, len(toks))
		overlap := 0
		weight := 0.0
		for _, tok := range toks {
			weight += freq[tok]
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			if _, ok := queryTerms[tok]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			weight /= math.Sqrt(l)
		}
		candidates = append(candidates, scored{idx: i, overlap: overlap, weight: weight})
	}
	if len(candidates) == 0 {
		return "", generator.ErrNoAnswer
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].overlap != candidates[j].overlap {
			return candidates[i].overlap > candidates[j].overlap
		}
		return candidates[i].weight > candidates[j].weight
	})
	n := g.maxSentences
	if n > len(candidates) {
		n = len(candidates)
	}
	// Keep context order among selected
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = candidates[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

func (g *Generator) tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, ok := g.stopwords[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "when", "where", "which", "who", "whom", "why", "how", "do", "does", "did", "i", "you", "we", "my", "your", "our", "me",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
