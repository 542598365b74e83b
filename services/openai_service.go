package services

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIService はCompletionServiceのOpenAI実装。
// COMPLETION_BACKEND=openai のときに使われる。
type OpenAIService struct {
	client *openai.Client
	model  string
}

func NewOpenAIService(apiKey string, model string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (s *OpenAIService) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %v", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	return resp.Choices[0].Message.Content, nil
}
