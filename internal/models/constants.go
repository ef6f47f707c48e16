package models

import "errors"

const (
	// RefusalText is the exact reply expected when the context holds no answer.
	RefusalText = "The document does not contain this information."

	MetaSource = "source"
	MetaPage   = "page"
	MetaChunk  = "chunk"
)

var (
	SystemPrompt = `You are a helpful assistant answering questions from uploaded documents.

- Use ONLY the provided document context to answer.
- If the answer is not in the context, reply exactly:
  "` + RefusalText + `"
- Use the chat history to understand follow-up questions.
- Be concise and clear.`

	// PromptTemplate takes the system prompt, chat history, document context and question.
	PromptTemplate = `%s

Chat history:
%s

Document context:
%s

User question:
%s

Answer:
`
)

// ErrBackendUnavailable marks failures of the embedding or language model backends.
var ErrBackendUnavailable = errors.New("backend temporarily unavailable")
