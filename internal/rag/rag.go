package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/vectorstore"
)

// Retriever returns the chunks most similar to a question.
type Retriever struct {
	collection *vectorstore.Collection
	topK       int
	minScore   float32
}

func NewRetriever(collection *vectorstore.Collection, topK int, minScore float32) *Retriever {
	if topK <= 0 {
		topK = 1
	}
	return &Retriever{collection: collection, topK: topK, minScore: minScore}
}

func (r *Retriever) TopK() int { return r.topK }

// Retrieve returns at most TopK chunks, best first. Matches scoring below the
// minimum score are dropped.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.Chunk, error) {
	matches, err := r.collection.Query(ctx, question, r.topK)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, 0, len(matches))
	for _, m := range matches {
		if r.minScore > 0 && m.Score < r.minScore {
			log.Debug().Str("source", m.Source).Float32("score", m.Score).Msg("Dropping low scoring match")
			continue
		}
		chunks = append(chunks, m.Chunk)
	}
	return chunks, nil
}

// Completer turns a prompt into model text. Implemented by llmservice.Client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Generator struct {
	llm Completer
}

func NewGenerator(llm Completer) *Generator {
	return &Generator{llm: llm}
}

// BuildPrompt lays out the system instructions, the chat history, the document
// context and the question, in that order.
func BuildPrompt(question string, chunks []models.Chunk, history []models.Turn) string {
	var chat strings.Builder
	for i, turn := range history {
		if i > 0 {
			chat.WriteString("\n")
		}
		fmt.Fprintf(&chat, "User: %s\nAssistant: %s", turn.Question, turn.Answer)
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	return fmt.Sprintf(models.PromptTemplate, models.SystemPrompt, chat.String(), strings.Join(texts, "\n\n"), question)
}

// Answer asks the model once. With no context it refuses without calling the model.
func (g *Generator) Answer(ctx context.Context, question string, chunks []models.Chunk, history []models.Turn) (string, error) {
	if len(chunks) == 0 {
		log.Debug().Msg("No document context, refusing")
		return models.RefusalText, nil
	}
	return g.llm.Complete(ctx, BuildPrompt(question, chunks, history))
}

// Report summarises one ingestion.
type Report struct {
	Documents int      `json:"documents"`
	Chunks    int      `json:"chunks"`
	Skipped   []string `json:"skipped"`
}

// Engine ties the loader, splitter, collection, retriever and generator together.
type Engine struct {
	splitter   *parser.Splitter
	collection *vectorstore.Collection
	retriever  *Retriever
	generator  *Generator
}

func NewEngine(splitter *parser.Splitter, collection *vectorstore.Collection, retriever *Retriever, generator *Generator) *Engine {
	return &Engine{
		splitter:   splitter,
		collection: collection,
		retriever:  retriever,
		generator:  generator,
	}
}

// Process loads, splits and indexes the files at paths.
func (e *Engine) Process(ctx context.Context, paths []string) (*Report, error) {
	loaded, err := parser.LoadDocuments(ctx, paths)
	if err != nil {
		return nil, err
	}
	report := &Report{Documents: len(loaded.Documents), Skipped: loaded.Skipped}
	if report.Skipped == nil {
		report.Skipped = []string{}
	}

	chunks, err := e.splitter.Split(loaded.Documents)
	if err != nil {
		return nil, fmt.Errorf("failed to split documents: %w", err)
	}
	report.Chunks, err = e.collection.Index(ctx, chunks)
	if err != nil {
		return nil, err
	}

	log.Info().Int("files", len(paths)).Int("documents", report.Documents).Int("chunks", report.Chunks).Strs("skipped", report.Skipped).Msg("Processed files")
	return report, nil
}

// Ask retrieves context for question and generates an answer. The returned
// chunks are exactly the ones placed in the prompt.
func (e *Engine) Ask(ctx context.Context, question string, history []models.Turn) (string, []models.Chunk, error) {
	chunks, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return "", nil, err
	}
	answer, err := e.generator.Answer(ctx, question, chunks, history)
	if err != nil {
		return "", nil, err
	}
	return answer, chunks, nil
}

// Count reports how many records the collection holds.
func (e *Engine) Count(ctx context.Context) (int, error) {
	return e.collection.Count(ctx)
}

func (e *Engine) Collection() *vectorstore.Collection {
	return e.collection
}
