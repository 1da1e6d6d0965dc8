package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"assistant/internal/generator"
)

type Config struct {
	APIKeyEnv       string
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

// Client answers questions with a Gemini model.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = generator.DefaultTemperature
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(generator.SystemPrompt)}}
	model.SetTemperature(float32(cfg.Temperature))
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(cfg.MaxOutputTokens))
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Generate(ctx context.Context, query string, chunks []string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(generator.UserMessage(query, chunks)))
	if err != nil {
		return "", fmt.Errorf("gemini generate error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", generator.ErrNoAnswer
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", generator.ErrNoAnswer
	}
	return answer, nil
}

func (c *Client) Close() error { return c.client.Close() }
