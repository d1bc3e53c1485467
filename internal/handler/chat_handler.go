package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/pkg/llm"
	"pizzeria-rag-go/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

const maxPendingQuestions = 4

// Answerer 问答服务。
type Answerer interface {
	AnswerQuestion(ctx context.Context, req model.AskRequest) (*model.AnswerResult, error)
	StreamAnswer(ctx context.Context, req model.AskRequest, out llm.MessageWriter, shouldStop func() bool) (*model.AnswerResult, error)
}

// ChatHandler 负责问答请求，包括同步接口与 WebSocket 流式接口。
type ChatHandler struct {
	answerer Answerer
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(answerer Answerer) *ChatHandler {
	return &ChatHandler{answerer: answerer}
}

// Ask 同步问答。
func (h *ChatHandler) Ask(c *gin.Context) {
	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		fail(c, http.StatusBadRequest, "La question ne peut pas être vide")
		return
	}
	log.Infof("[ChatHandler] 收到问题: %s", req.Question)

	result, err := h.answerer.AnswerQuestion(c.Request.Context(), req)
	if err != nil {
		log.Warnf("[ChatHandler] 问答失败: %v", err)
		fail(c, statusFor(err), err.Error())
		return
	}
	ok(c, "success", result)
}

// wsMessage 客户端帧：问题请求或 {"type":"stop"}。
type wsMessage struct {
	Type string `json:"type"`
	model.AskRequest
}

// lockedConn gorilla 连接不支持并发写。
type lockedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *lockedConn) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

func (l *lockedConn) writeJSON(v interface{}) {
	b, _ := json.Marshal(v)
	_ = l.WriteMessage(websocket.TextMessage, b)
}

// Handle 处理一个传入的 WebSocket 连接。问题按到达顺序逐个回答，
// 生成过程中可发送 {"type":"stop"} 中断当前回答。未指定 sessionId 时整个连接共享一个会话。
func (h *ChatHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("[ChatHandler] WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	out := &lockedConn{conn: conn}
	sessionID := uuid.NewString()
	log.Infof("[ChatHandler] WebSocket 连接已建立, session: %s", sessionID)

	var stop atomic.Bool
	pending := make(chan model.AskRequest, maxPendingQuestions)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for req := range pending {
			stop.Store(false)
			h.stream(ctx, req, out, stop.Load)
		}
	}()
	defer func() {
		cancel()
		close(pending)
		<-done
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("[ChatHandler] 从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		msg := parseWSMessage(message)
		if msg.Type == "stop" {
			stop.Store(true)
			out.writeJSON(gin.H{"type": "stop", "message": "Réponse interrompue", "timestamp": time.Now().UnixMilli()})
			continue
		}
		if strings.TrimSpace(msg.Question) == "" {
			out.writeJSON(gin.H{"error": "La question ne peut pas être vide"})
			continue
		}
		if msg.SessionID == "" {
			msg.SessionID = sessionID
		}
		select {
		case pending <- msg.AskRequest:
		default:
			out.writeJSON(gin.H{"error": "Trop de questions en attente"})
		}
	}
}

func (h *ChatHandler) stream(ctx context.Context, req model.AskRequest, out *lockedConn, shouldStop func() bool) {
	if _, err := h.answerer.StreamAnswer(ctx, req, out, shouldStop); err != nil {
		log.Errorf("[ChatHandler] 处理流式响应失败: %v", err)
		msg := "Service momentanément indisponible, réessayez plus tard"
		if errors.Is(err, registry.ErrDocumentNotFound) {
			msg = err.Error()
		}
		out.writeJSON(gin.H{"error": msg})
		out.writeJSON(gin.H{"type": "completion", "status": "finished", "timestamp": time.Now().UnixMilli()})
	}
}

// parseWSMessage JSON 帧按字段解析，其他文本整体视为问题。
func parseWSMessage(message []byte) wsMessage {
	var msg wsMessage
	trimmed := strings.TrimSpace(string(message))
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal(message, &msg) == nil {
		return msg
	}
	msg.Question = trimmed
	return msg
}
