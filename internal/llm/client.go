// Package llm wraps the OpenAI API behind the narrow embed/generate
// capability the pipeline consumes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nabobery/Neurality-Take-Home-Assignment/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the dimension of text-embedding-3-small vectors
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the OpenAI model used for answer generation
	DefaultChatModel = openai.GPT4oMini
	// DefaultBatchSize caps texts per embedding request
	DefaultBatchSize = 16
	// DefaultMaxInputChars caps a single embedding input
	DefaultMaxInputChars = 24000
	// DefaultTimeout bounds a single backend round-trip
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrNoAPIKey is returned when the OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrNoData is returned when the backend responds without payload
	ErrNoData = errors.New("backend returned no data")
)

// API defines the backend surface the client depends on
type API interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	CreateCompletion(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// OpenAIAdapter adapts the sashabaranov client to the API interface
type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
}

func NewOpenAIAdapter(apiKey string, embeddingModel openai.EmbeddingModel, chatModel string) *OpenAIAdapter {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	return &OpenAIAdapter{
		client:         openai.NewClient(apiKey),
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}
}

// CreateEmbeddings calls the OpenAI embeddings API for a batch of texts
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// CreateCompletion calls the OpenAI chat completions API once
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoData
	}

	return resp.Choices[0].Message.Content, nil
}

// Config holds client configuration
type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	ChatModel           string
	EmbeddingDimensions int
	BatchSize           int
	MaxInputChars       int
	MaxTokens           int
	Temperature         float32
	Timeout             time.Duration
}

// Client provides batched embedding generation and single-shot text
// generation over an API backend. For a fixed backend and model version,
// embedding the same text twice yields identical vectors.
type Client struct {
	api           API
	dimensions    int
	batchSize     int
	maxInputChars int
	maxTokens     int
	temperature   float32
	timeout       time.Duration
}

// NewClient creates a new client using defaults
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new client with explicit configuration
func NewClientWithConfig(cfg Config) *Client {
	c := &Client{
		api:           NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel, cfg.ChatModel),
		dimensions:    cfg.EmbeddingDimensions,
		batchSize:     cfg.BatchSize,
		maxInputChars: cfg.MaxInputChars,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		timeout:       cfg.Timeout,
	}
	if c.dimensions <= 0 {
		c.dimensions = DefaultEmbeddingDimensions
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.maxInputChars <= 0 {
		c.maxInputChars = DefaultMaxInputChars
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// NewClientFromEnv creates a new client using the OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// NewClientWithAPI creates a client over a custom API implementation (for testing)
func NewClientWithAPI(api API, dimensions int) *Client {
	c := NewClientWithConfig(Config{EmbeddingDimensions: dimensions})
	c.api = api
	return c
}

// Dimensions returns the fixed embedding dimension of this backend instance
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Embed generates one vector per input text, preserving order. Inputs are
// validated before any backend call; a failure anywhere fails the whole
// call and no partial vector list is returned.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	for _, text := range texts {
		if text == "" {
			return nil, domain.ErrEmptyInputText
		}
		if len(text) > c.maxInputChars {
			return nil, domain.ErrInputTooLong
		}
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		batch, err := c.api.CreateEmbeddings(callCtx, texts[start:end])
		cancel()
		if err != nil {
			return nil, domain.NewEmbeddingBackendError(err)
		}

		for _, v := range batch {
			if len(v) != c.dimensions {
				return nil, domain.NewEmbeddingBackendError(
					fmt.Errorf("embedding has %d dimensions, expected %d", len(v), c.dimensions))
			}
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// Generate produces text for the prompt with a single stateless backend call
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", domain.ErrEmptyInputText
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.api.CreateCompletion(callCtx, prompt, c.maxTokens, c.temperature)
	if err != nil {
		return "", domain.NewGenerationBackendError(err)
	}

	return text, nil
}
