package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var ErrNoEmbedding = errors.New("gemini returned no embedding")

// Config configures the Gemini embedding model.
type Config struct {
	APIKeyEnv string
	Model     string
}

// Client embeds text with a Gemini embedding model.
type Client struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: client, model: client.EmbeddingModel(cfg.Model)}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	res, err := c.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, ErrNoEmbedding
	}
	out := make([]float64, len(res.Embedding.Values))
	for i, v := range res.Embedding.Values {
		out[i] = float64(v)
	}
	return out, nil
}

func (c *Client) Close() error { return c.client.Close() }
