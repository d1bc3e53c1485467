package service

import (
	"context"
	"errors"

	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/repository"
)

// ConversationService 定义了对话业务逻辑的接口。
type ConversationService interface {
	GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	ClearConversation(ctx context.Context, sessionID string) error
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。repo 可为空。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

var (
	// ErrMissingSession 未提供会话 ID。
	ErrMissingSession = errors.New("session id is required")
	// ErrMemoryDisabled 未配置 Redis，不保存会话历史。
	ErrMemoryDisabled = errors.New("conversation memory is disabled")
)

// GetConversationHistory 获取会话的消息历史，最多 20 条。
func (s *conversationService) GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if s.repo == nil {
		return nil, ErrMemoryDisabled
	}
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	return s.repo.GetConversationHistory(ctx, sessionID)
}

func (s *conversationService) ClearConversation(ctx context.Context, sessionID string) error {
	if s.repo == nil {
		return ErrMemoryDisabled
	}
	if sessionID == "" {
		return ErrMissingSession
	}
	return s.repo.DeleteConversation(ctx, sessionID)
}
