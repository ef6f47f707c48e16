package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"docqa/internal/helper"
	"docqa/internal/models"
)

var ErrEncryptionKey = errors.New("encryption key must be 32 bytes")

// VectorDBManager keeps one chromem collection, in memory or persisted to a directory.
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	dbPath         string
	compress       bool
	encryptionKey  string
}

// NewVectorDBManager opens (or creates) the database at dbPath and the named
// collection in it. Reopening the same path and name yields the same records.
func NewVectorDBManager(dbPath, collectionName string, inMemory, compress bool, encryptionKey string) (*VectorDBManager, error) {
	if encryptionKey != "" && len(encryptionKey) != 32 {
		return nil, ErrEncryptionKey
	}

	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:             db,
		collectionName: collectionName,
		dbPath:         dbPath,
		compress:       compress,
		encryptionKey:  encryptionKey,
	}
	if _, err := m.getOrCreateCollection(); err != nil {
		return nil, err
	}
	log.Debug().Str("path", dbPath).Str("collection", collectionName).Int("count", m.collection.Count()).Msg("Opened vector collection")
	return m, nil
}

// create or read collection
func (m *VectorDBManager) getOrCreateCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Add stores records with precomputed embeddings in one batch. Every record
// gets a fresh ID, so adding the same chunk twice keeps both copies.
func (m *VectorDBManager) Add(ctx context.Context, records []models.ChunkEmbedding) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(records))
	for _, r := range records {
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		docs = append(docs, chromem.Document{
			ID:        id,
			Content:   r.Text,
			Metadata:  r.Metadata(),
			Embedding: r.Embedding,
		})
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns up to k records by descending cosine similarity to vector.
func (m *VectorDBManager) Search(ctx context.Context, vector []float32, k int) ([]models.Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("query embedding must be provided")
	}
	n := min(k, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]models.Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, models.Match{
			Chunk: models.ChunkFromMetadata(r.Content, r.Metadata),
			Score: r.Similarity,
		})
	}
	return matches, nil
}

func (m *VectorDBManager) Count(_ context.Context) (int, error) {
	return m.collection.Count(), nil
}

// Reset drops every record of the collection.
func (m *VectorDBManager) Reset(_ context.Context) error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	_, err := m.getOrCreateCollection()
	return err
}

func (m *VectorDBManager) Close() error { return nil }

// Export writes the collection to filePath, encrypted when the manager has a key.
func (m *VectorDBManager) Export(_ context.Context, filePath string) error {
	if filePath == "" {
		return errors.New("export path is required")
	}
	log.Debug().Str("collection", m.collectionName).Str("file", filePath).Bool("compress", m.compress).Bool("encrypted", m.encryptionKey != "").Msg("Exporting collection")

	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import replaces the collection with the one stored in filePath. The file is
// read into a scratch database first, so a bad file or key leaves the
// collection untouched.
func (m *VectorDBManager) Import(_ context.Context, filePath string) error {
	scratch := chromem.NewDB()
	if err := scratch.ImportFromFile(filePath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	if scratch.GetCollection(m.collectionName, nil) == nil {
		return fmt.Errorf("%s has no collection %q", filePath, m.collectionName)
	}
	// Persistent imports only add files, so the old documents go first.
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	_, err := m.getOrCreateCollection()
	return err
}
