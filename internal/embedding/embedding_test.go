package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/embedding/embeddingtest"
	"docqa/internal/llmservice"
	"docqa/internal/models"
)

type batchRecorder struct {
	embeddingtest.Hashing
	batches []int
	short   bool
}

func (b *batchRecorder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	b.batches = append(b.batches, len(texts))
	vectors, err := b.Hashing.EmbedDocuments(ctx, texts)
	if b.short && len(vectors) > 0 {
		vectors = vectors[1:]
	}
	return vectors, err
}

func chunks(n int) []models.Chunk {
	out := make([]models.Chunk, n)
	for i := range out {
		out[i] = models.Chunk{Text: fmt.Sprintf("chunk number %d", i), Source: "a.txt", Index: i}
	}
	return out
}

func TestGenerateEmbedding_Batches(t *testing.T) {
	rec := &batchRecorder{}

	got, err := GenerateEmbedding(context.Background(), rec, chunks(5), 2)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, rec.batches)
	require.Len(t, got, 5)
	for i, ce := range got {
		assert.Equal(t, i, ce.Index)
		assert.Equal(t, embeddingtest.Vector(ce.Text), ce.Embedding)
	}
}

func TestGenerateEmbedding_Empty(t *testing.T) {
	got, err := GenerateEmbedding(context.Background(), &embeddingtest.Hashing{}, nil, 10)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGenerateEmbedding_FailureReturnsNothing(t *testing.T) {
	emb := &embeddingtest.Hashing{Fail: true}

	got, err := GenerateEmbedding(context.Background(), emb, chunks(3), 0)
	assert.ErrorIs(t, err, embeddingtest.ErrUnavailable)
	assert.Nil(t, got)
}

func TestGenerateEmbedding_CountMismatch(t *testing.T) {
	_, err := GenerateEmbedding(context.Background(), &batchRecorder{short: true}, chunks(3), 0)
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestGuarded_WrapsBackendErrors(t *testing.T) {
	inner := &embeddingtest.Hashing{Fail: true}
	g := NewGuarded(inner, llmservice.NewGuard("embed", 0, time.Second))

	_, err := g.EmbedQuery(context.Background(), "hello")
	assert.True(t, errors.Is(err, models.ErrBackendUnavailable))
	assert.True(t, errors.Is(err, embeddingtest.ErrUnavailable))

	inner.Fail = false
	v, err := g.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, embeddingtest.Vector("hello"), v)

	vs, err := g.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vs, 2)
}

func TestNewEmbedder(t *testing.T) {
	_, err := NewEmbedder(&config.LLMConfig{Provider: "bogus"})
	assert.Error(t, err)

	e, err := NewEmbedder(&config.LLMConfig{Provider: "ollama", BaseURL: "http://localhost:11434", Model: "nomic-embed-text", BatchSize: 8})
	require.NoError(t, err)
	assert.NotNil(t, e)
}
