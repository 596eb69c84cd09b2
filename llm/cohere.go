package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shortsbot/common"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// Cohere is a hosted TextModel; it holds no local device memory
type Cohere struct {
	client *cohereclient.Client
	model  string
	retry  common.RetryPolicy
}

// NewCohere builds a Cohere chat client
func NewCohere(apiKey, model string, maxAttempts int) *Cohere {
	httpClient := &http.Client{Timeout: 120 * time.Second}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &Cohere{
		client: client,
		model:  model,
		retry: common.RetryPolicy{
			MaxAttempts: maxAttempts,
			BaseDelay:   2 * time.Second,
			MaxDelay:    20 * time.Second,
		},
	}
}

// Generate implements TextModel
func (c *Cohere) Generate(ctx context.Context, prompt string) (string, error) {
	return common.Retry(ctx, c.retry, func(ctx context.Context) (string, error) {
		temperature := 0.8
		p := 0.9
		maxTokens := 500
		resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
			Message:     prompt,
			Model:       &c.model,
			Temperature: &temperature,
			P:           &p,
			MaxTokens:   &maxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("cohere chat error: %w", err)
		}
		if resp == nil {
			return "", errors.New("cohere chat returned empty response")
		}
		return strings.TrimSpace(resp.Text), nil
	})
}
