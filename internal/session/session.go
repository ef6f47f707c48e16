// Package session holds per-user conversation state on top of the shared RAG engine.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"docqa/internal/helper"
	"docqa/internal/models"
	"docqa/internal/rag"
)

var (
	ErrNoFiles       = errors.New("please upload at least one document before processing")
	ErrEmptyQuestion = errors.New("please enter a question")
	ErrNoDocuments   = errors.New("please upload and process documents first")
	ErrSessionBusy   = errors.New("session is busy with another request")
)

// Session is one user's conversation. It admits a single Process or Ask at a time.
type Session struct {
	ID string

	mu      sync.Mutex
	engine  *rag.Engine
	history HistoryStore
	ready   atomic.Bool
}

func newSession(id string, engine *rag.Engine, history HistoryStore, ready bool) *Session {
	s := &Session{ID: id, engine: engine, history: history}
	s.ready.Store(ready)
	return s
}

func (s *Session) acquire() error {
	if !s.mu.TryLock() {
		return ErrSessionBusy
	}
	return nil
}

// Ready reports whether the session can answer questions.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// Process ingests the files at paths into the shared collection.
func (s *Session) Process(ctx context.Context, paths []string) (*rag.Report, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	report, err := s.engine.Process(ctx, paths)
	if err != nil {
		return nil, err
	}
	n, err := s.engine.Count(ctx)
	if err != nil {
		return nil, err
	}
	s.ready.Store(n > 0)
	log.Info().Str("session", s.ID).Int("chunks", report.Chunks).Int("records", n).Msg("Session documents processed")
	return report, nil
}

// Ask answers question and records the turn. Failures leave the history unchanged.
func (s *Session) Ask(ctx context.Context, question string) (models.Turn, error) {
	if strings.TrimSpace(question) == "" {
		return models.Turn{}, ErrEmptyQuestion
	}
	if err := s.acquire(); err != nil {
		return models.Turn{}, err
	}
	defer s.mu.Unlock()
	if !s.ready.Load() {
		return models.Turn{}, ErrNoDocuments
	}

	history, err := s.history.List(ctx, s.ID)
	if err != nil {
		return models.Turn{}, err
	}
	answer, sources, err := s.engine.Ask(ctx, question, history)
	if err != nil {
		log.Error().Err(err).Str("session", s.ID).Msg("Failed to answer question")
		return models.Turn{}, err
	}

	turn := models.Turn{Question: question, Answer: answer, Sources: sources}
	if turn.Sources == nil {
		turn.Sources = []models.Chunk{}
	}
	if err := s.history.Append(ctx, s.ID, turn); err != nil {
		return models.Turn{}, err
	}
	return turn, nil
}

func (s *Session) History(ctx context.Context) ([]models.Turn, error) {
	return s.history.List(ctx, s.ID)
}

// Clear forgets the conversation. Indexed documents stay.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.history.Clear(ctx, s.ID)
}

// ExportFileName is the download name of a JSON export.
const ExportFileName = "conversation_history.json"

// Export writes the history as an indented JSON array.
func (s *Session) Export(ctx context.Context, w io.Writer) error {
	turns, err := s.History(ctx)
	if err != nil {
		return err
	}
	exported := make([]models.ExportedTurn, 0, len(turns))
	for _, t := range turns {
		exported = append(exported, t.Export())
	}
	return helper.PrettyPrint(w, exported)
}

// ExportXLSX writes the history as a spreadsheet with one row per turn.
func (s *Session) ExportXLSX(ctx context.Context, w io.Writer) error {
	turns, err := s.History(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Conversation"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for i, header := range []string{"Question", "Answer", "Sources"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return err
		}
	}
	for i, t := range turns {
		row := i + 2
		values := []string{t.Question, t.Answer, formatSources(t.Export().Sources)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

func formatSources(sources []models.Source) string {
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		page := "N/A"
		if src.Page != nil {
			page = fmt.Sprint(*src.Page)
		}
		parts = append(parts, fmt.Sprintf("%s (page %s)", filepath.Base(src.Source), page))
	}
	return strings.Join(parts, "; ")
}
