package summarize

import (
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI invokes an OpenAI-compatible chat-completion endpoint. A base URL
// override points it at self-hosted gateways exposing the same API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a model client.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// chatRequest builds the completion request. Temperature is pinned to
// (effectively) zero: summaries of the same call should come out the same.
// The field is omitempty, so an exact 0 would be dropped from the request
// body and the endpoint default would apply; the smallest nonzero float is
// the library's escape hatch for sending it.
func chatRequest(model, prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       model,
		Temperature: math.SmallestNonzeroFloat32,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}
}

// Complete implements ModelClient.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, chatRequest(o.model, prompt))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
