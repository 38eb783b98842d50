package openai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const systemMessage = "You are Betty Crystal, a theatrical fortune teller who " +
	"makes concrete weekly market predictions. You always answer with valid JSON " +
	"and keep confidence levels conservative."

// Client wraps the OpenAI API client
type Client struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// NewClient creates a new OpenAI client
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = openai.GPT4o
	}
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: log.With().Str("component", "openai_client").Logger(),
	}
}

// GenerateProposals sends the weekly-picks prompt and returns the raw model
// output. The response is untrusted and goes through the normalizer; this
// client never parses it.
func (c *Client) GenerateProposals(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug().Int("prompt_len", len(prompt)).Msg("Requesting weekly picks")

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemMessage,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)

	if err != nil {
		c.logger.Error().Err(err).Msg("OpenAI API error")
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn().Msg("OpenAI returned empty choices")
		return "", fmt.Errorf("empty completion returned")
	}

	return resp.Choices[0].Message.Content, nil
}
