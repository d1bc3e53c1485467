// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pizzeria-rag-go/internal/config"
)

// ErrEmptyResponse 模型返回了空文本。
var ErrEmptyResponse = errors.New("llm returned an empty response")

// MessageWriter defines an interface for writing WebSocket messages.
// This allows both a standard websocket.Conn and our interceptor to be used.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Client defines the interface for an LLM client.
type Client interface {
	// Chat 非流式调用，返回完整回答。
	Chat(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
	// StreamChat 以 role-based 消息与可选生成参数调用聊天接口，并将流式分块写入 writer。
	StreamChat(ctx context.Context, messages []Message, gen *GenerationParams, writer MessageWriter) error
	// Ping 检查模型服务是否可达。
	Ping(ctx context.Context) error
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg config.LLMConfig) (Client, error) {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	// 超时由调用方的 ctx 控制（cfg.Timeout），流式响应不能整体设超时
	httpClient := &http.Client{}

	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		return &ollamaClient{cfg: cfg, client: httpClient}, nil
	case "openai", "deepseek", "dashscope", "":
		return &openAICompatibleClient{cfg: cfg, client: httpClient}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// resolveParams 传参优先，否则取配置中的非零值。
func resolveParams(cfg config.LLMGenerationConfig, gen *GenerationParams) GenerationParams {
	if gen != nil {
		return *gen
	}
	var out GenerationParams
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		out.Temperature = &t
	}
	if cfg.TopP != 0 {
		p := cfg.TopP
		out.TopP = &p
	}
	if cfg.MaxTokens != 0 {
		m := cfg.MaxTokens
		out.MaxTokens = &m
	}
	return out
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
		return fmt.Errorf("llm endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm endpoint returned %s", resp.Status)
	}
	return nil
}
