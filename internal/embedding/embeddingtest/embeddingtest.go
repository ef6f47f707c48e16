// Package embeddingtest provides a deterministic embedder for tests.
package embeddingtest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

const Dimensions = 64

var ErrUnavailable = errors.New("embedding service unavailable")

// Hashing is a bag-of-words embedder: each lower-cased word increments one of
// Dimensions buckets. Texts sharing words get a positive cosine similarity.
type Hashing struct {
	mu     sync.Mutex
	Fail   bool
	Calls  int
	Inputs []string
}

func (h *Hashing) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := h.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (h *Hashing) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Calls++
	h.Inputs = append(h.Inputs, text)
	if h.Fail {
		return nil, ErrUnavailable
	}
	return Vector(text), nil
}

// Vector is the embedding Hashing produces for text.
func Vector(text string) []float32 {
	v := make([]float32, Dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		v[f.Sum32()%Dimensions]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		// keep the vector non-zero so cosine similarity stays defined
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
