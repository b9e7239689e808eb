package lexical

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Embedder is a hashed bag-of-words vectorizer. Terms are hashed into a
// fixed number of buckets so the dimension is known before any text is seen
// and the same text always maps to the same vector.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a lexical embedder producing vectors of the given dimension.
func NewEmbedder(dimension int) (*Embedder, error) {
	if dimension <= 0 {
		return nil, errors.New("lexical embedder dimension must be positive")
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "lexical-" + strconv.Itoa(e.dimension) }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the normalized term-frequency vector of text.
// Text without any indexable token yields the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return vec, nil
	}
	tf := make(map[int]int)
	for _, tok := range tokens {
		tf[e.bucket(tok)]++
	}
	total := float64(len(tokens))
	for idx, count := range tf {
		// sublinear tf
		vec[idx] = (1 + math.Log(float64(count))) / total
	}
	// L2 normalize
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

func (e *Embedder) bucket(token string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum64() % uint64(e.dimension))
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
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
		"what", "which", "who", "how", "when", "where", "does", "do", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
