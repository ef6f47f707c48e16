package models

// Source is the citation shape used in conversation exports.
type Source struct {
	Source string `json:"source"`
	Page   *int   `json:"page"`
}

// Turn is one question/answer exchange together with the chunks it cited.
type Turn struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Sources  []Chunk `json:"sources"`
}

// ExportedTurn is the wire form of a Turn.
type ExportedTurn struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
}

// Export converts the turn into its wire form.
func (t Turn) Export() ExportedTurn {
	sources := make([]Source, 0, len(t.Sources))
	for _, c := range t.Sources {
		sources = append(sources, c.Citation())
	}
	return ExportedTurn{Question: t.Question, Answer: t.Answer, Sources: sources}
}
