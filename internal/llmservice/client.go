package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrEmptyResponse = errors.New("model returned no choices")

// Model is the part of a langchaingo LLM the client needs.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// NewModel creates the chat model for llmConfig.Provider.
func NewModel(llmConfig *config.LLMConfig) (Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Creating chat model")
	switch llmConfig.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case "openai":
		return openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", llmConfig.Provider)
	}
}

// Client sends prompts to a chat model through a Guard.
type Client struct {
	model Model
	guard *Guard
}

func NewClient(model Model, guard *Guard) *Client {
	return &Client{model: model, guard: guard}
}

// GenerateContent calls the model with messages.
func (c *Client) GenerateContent(ctx context.Context, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	var res *llms.ContentResponse
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.model.GenerateContent(ctx, messages)
		if err != nil {
			return err
		}
		if res == nil || len(res.Choices) == 0 {
			return ErrEmptyResponse
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Complete sends prompt as a single human message and returns the model text as is.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	msgContent := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	res, err := c.GenerateContent(ctx, msgContent)
	if err != nil {
		return "", err
	}
	return res.Choices[0].Content, nil
}
