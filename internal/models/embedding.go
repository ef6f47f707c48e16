package models

import (
	"path/filepath"
	"strconv"
)

// Document is a unit of loaded text: a whole TXT file or a single PDF page.
type Document struct {
	Text   string
	Source string
	Page   *int
}

// Chunk represents a split segment of a Document with inherited metadata
type Chunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   *int   `json:"page"`
	Index  int    `json:"index"`
}

type ChunkEmbedding struct {
	Chunk
	Embedding []float32
}

// Match is a chunk returned by a similarity query.
type Match struct {
	Chunk
	Score float32
}

// PageRef returns a pointer to a copy of n.
func PageRef(n int) *int {
	return &n
}

// Metadata flattens the chunk provenance into string pairs for the vector store.
func (c Chunk) Metadata() map[string]string {
	page := ""
	if c.Page != nil {
		page = strconv.Itoa(*c.Page)
	}
	return map[string]string{
		MetaSource: c.Source,
		MetaPage:   page,
		MetaChunk:  strconv.Itoa(c.Index),
	}
}

// ChunkFromMetadata is the inverse of Chunk.Metadata.
func ChunkFromMetadata(text string, meta map[string]string) Chunk {
	c := Chunk{Text: text, Source: meta[MetaSource]}
	if p, err := strconv.Atoi(meta[MetaPage]); err == nil {
		c.Page = PageRef(p)
	}
	if i, err := strconv.Atoi(meta[MetaChunk]); err == nil {
		c.Index = i
	}
	return c
}

// Citation reduces a chunk to its exported source reference.
func (c Chunk) Citation() Source {
	return Source{Source: filepath.Base(c.Source), Page: c.Page}
}
