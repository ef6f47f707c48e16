package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"docqa/internal/chromemdb"
	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/embedding"
	"docqa/internal/llmservice"
	"docqa/internal/parser"
	"docqa/internal/rag"
	"docqa/internal/session"
	"docqa/internal/vectorstore"
)

var errNeedsChromem = errors.New("index export and import need the chromem vector store backend")

// app holds the wired services of one CLI invocation.
type app struct {
	cfg      *config.Config
	store    vectorstore.Store
	chromem  *chromemdb.VectorDBManager
	engine   *rag.Engine
	guards   []*llmservice.Guard
	sessions *session.Manager
}

// openStore opens the configured vector store backend. The chromem manager is
// returned separately as it also handles export and import.
func openStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, *chromemdb.VectorDBManager, error) {
	switch cfg.VectorStore.Backend {
	case "pgvector":
		store, err := db.NewStore(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		m, err := chromemdb.NewVectorDBManager(
			cfg.VectorStore.Path,
			cfg.VectorStore.Collection,
			false,
			cfg.VectorStore.Compress,
			cfg.VectorStore.EncryptionKey,
		)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, chromem, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		store.Close()
		return nil, err
	}
	model, err := llmservice.NewModel(&cfg.LLM)
	if err != nil {
		store.Close()
		return nil, err
	}

	embedGuard := llmservice.NewGuard("embedding", cfg.EmbedLLM.RequestsPerMinute, cfg.EmbedLLM.Timeout)
	llmGuard := llmservice.NewGuard("llm", cfg.LLM.RequestsPerMinute, cfg.LLM.Timeout)

	collection := vectorstore.NewCollection(store, embedding.NewGuarded(embedder, embedGuard), cfg.EmbedLLM.BatchSize)
	engine := rag.NewEngine(
		parser.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		collection,
		rag.NewRetriever(collection, cfg.Retrieval.TopK, cfg.Retrieval.MinScore),
		rag.NewGenerator(llmservice.NewClient(model, llmGuard)),
	)

	history, err := session.NewHistoryStore(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	log.Debug().
		Str("backend", cfg.VectorStore.Backend).
		Str("embed_model", cfg.EmbedLLM.Model).
		Str("llm_model", cfg.LLM.Model).
		Int("top_k", cfg.Retrieval.TopK).
		Msg("Services ready")

	return &app{
		cfg:      cfg,
		store:    store,
		chromem:  chromem,
		engine:   engine,
		guards:   []*llmservice.Guard{embedGuard, llmGuard},
		sessions: session.NewManager(engine, history),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close vector store")
	}
}
