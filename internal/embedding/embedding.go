package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/llmservice"
	"docqa/internal/models"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrCountMismatch = errors.New("embedding count does not match input count")

// Embedder maps text to vectors. It matches langchaingo's embeddings.Embedder.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder creates a langchaingo embedder for the configured provider.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch llmConfig.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama: %w", err)
		}
		client = llm
	case "openai":
		llm, err := openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithEmbeddingModel(llmConfig.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", llmConfig.Provider)
	}

	opts := []embeddings.Option{}
	if llmConfig.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(llmConfig.BatchSize))
	}
	return embeddings.NewEmbedder(client, opts...)
}

// Guarded routes every embedding call through a llmservice.Guard.
type Guarded struct {
	next  Embedder
	guard *llmservice.Guard
}

func NewGuarded(next Embedder, guard *llmservice.Guard) *Guarded {
	return &Guarded{next: next, guard: guard}
}

func (g *Guarded) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = g.next.EmbedDocuments(ctx, texts)
		return err
	})
	return vectors, err
}

func (g *Guarded) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		vector, err = g.next.EmbedQuery(ctx, text)
		return err
	})
	return vector, err
}

// GenerateEmbedding embeds the text of every chunk, batchSize texts per call.
// It returns nothing unless every chunk was embedded.
func GenerateEmbedding(ctx context.Context, embedder Embedder, chunks []models.Chunk, batchSize int) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	chunkEmbeddings := make([]models.ChunkEmbedding, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vectors), len(texts))
		}
		for i, c := range chunks[start:end] {
			chunkEmbeddings = append(chunkEmbeddings, models.ChunkEmbedding{Chunk: c, Embedding: vectors[i]})
		}
		log.Debug().Int("done", end).Int("total", len(chunks)).Msg("Embedded batch")
	}
	return chunkEmbeddings, nil
}
