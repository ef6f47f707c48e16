// Package vectorstore pairs an embedder with a record store so callers can
// index and query chunks by text.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"docqa/internal/embedding"
	"docqa/internal/models"
)

var ErrEmptyQuery = errors.New("query text is empty")

// Store persists embedded chunks. Implemented by chromemdb.VectorDBManager and db.Store.
type Store interface {
	Add(ctx context.Context, records []models.ChunkEmbedding) error
	Search(ctx context.Context, vector []float32, k int) ([]models.Match, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Close() error
}

type Collection struct {
	store     Store
	embedder  embedding.Embedder
	batchSize int
}

func NewCollection(store Store, embedder embedding.Embedder, batchSize int) *Collection {
	return &Collection{store: store, embedder: embedder, batchSize: batchSize}
}

// Index embeds every chunk before writing anything, so an embedding failure
// leaves the store untouched. It returns the number of records added.
func (c *Collection) Index(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	records, err := embedding.GenerateEmbedding(ctx, c.embedder, chunks, c.batchSize)
	if err != nil {
		return 0, err
	}
	if err := c.store.Add(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	log.Info().Int("chunks", len(records)).Msg("Indexed chunks")
	return len(records), nil
}

// Query embeds text and returns at most k matches, best first.
func (c *Collection) Query(ctx context.Context, text string, k int) ([]models.Match, error) {
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, nil
	}
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	matches, err := c.store.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search store: %w", err)
	}
	return matches, nil
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

func (c *Collection) Reset(ctx context.Context) error {
	return c.store.Reset(ctx)
}

func (c *Collection) Close() error {
	return c.store.Close()
}
