package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pizzeria-rag-go/internal/service"
	"pizzeria-rag-go/pkg/log"
)

// ConversationHandler 处理与对话相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetConversation 处理获取会话历史的请求。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	sessionID := c.Query("sessionId")
	history, err := h.service.GetConversationHistory(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "success", history)
}

// ClearConversation 删除会话历史。
func (h *ConversationHandler) ClearConversation(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if err := h.service.ClearConversation(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "success", nil)
}

func (h *ConversationHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, service.ErrMissingSession) {
		fail(c, http.StatusBadRequest, "缺少 sessionId 参数")
		return
	}
	if errors.Is(err, service.ErrMemoryDisabled) {
		fail(c, http.StatusServiceUnavailable, "未启用会话记忆")
		return
	}
	log.Errorf("[ConversationHandler] 读取会话失败: %v", err)
	fail(c, http.StatusInternalServerError, "Failed to retrieve conversation history")
}
