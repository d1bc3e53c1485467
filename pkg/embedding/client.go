// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pizzeria-rag-go/internal/config"
)

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// Ping reports whether the embedding endpoint is reachable.
	Ping(ctx context.Context) error
}

// NewClient creates a new embedding client based on the provider in the config.
// A positive CacheSize wraps the client in an LRU cache.
func NewClient(cfg config.EmbeddingConfig) (Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	var c Client
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		c = &ollamaClient{cfg: cfg, client: httpClient}
	case "openai", "dashscope", "deepseek", "":
		c = &openAICompatibleClient{cfg: cfg, client: httpClient}
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return NewCached(c, cfg.CacheSize)
	}
	return c, nil
}

func ping(ctx context.Context, client *http.Client, url, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding endpoint returned %s", resp.Status)
	}
	return nil
}
