package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"docqa/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

var ErrInvalidEncoding = errors.New("file is not valid UTF-8")

// LoadError reports the file that aborted an ingestion run.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", filepath.Base(e.File), e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadResult holds the documents read from a batch of files plus the files
// that were ignored because of their extension.
type LoadResult struct {
	Documents []models.Document
	Skipped   []string
}

type parseFunc func(filePath string) ([]models.Document, error)

var parsers = map[string]parseFunc{
	".pdf": parsePDF,
	".txt": parseText,
}

// SupportedExtensions lists the file extensions LoadDocuments understands.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(parsers))
	for ext := range parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupported reports whether path has a loadable extension.
func IsSupported(path string) bool {
	_, ok := parsers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadDocuments reads files in order and concatenates their documents.
// PDFs yield one document per text-bearing page, TXT files one document each.
// Files with other extensions are skipped and listed in the result; any read or
// parse failure aborts the whole call.
func LoadDocuments(ctx context.Context, filePaths []string) (*LoadResult, error) {
	res := &LoadResult{}
	for _, filePath := range filePaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ext := strings.ToLower(filepath.Ext(filePath))
		parse, ok := parsers[ext]
		if !ok {
			log.Warn().Str("file", filePath).Str("ext", ext).Msg("Skipping unsupported file")
			res.Skipped = append(res.Skipped, filePath)
			continue
		}

		docs, err := parse(filePath)
		if err != nil {
			return nil, &LoadError{File: filePath, Err: err}
		}
		log.Debug().Str("file", filePath).Int("documents", len(docs)).Msg("Loaded file")
		res.Documents = append(res.Documents, docs...)
	}
	return res, nil
}

func parsePDF(filePath string) (docs []models.Document, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("corrupt pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		docs = append(docs, models.Document{
			Text:   pageText,
			Source: filePath,
			Page:   models.PageRef(i),
		})
	}
	return docs, nil
}

func parseText(filePath string) ([]models.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	// TXT has no pages
	return []models.Document{{Text: string(data), Source: filePath}}, nil
}
