package handler

import (
	"github.com/gin-gonic/gin"

	"pizzeria-rag-go/internal/middleware"
	"pizzeria-rag-go/internal/service"
	"pizzeria-rag-go/pkg/token"
)

// Handlers 路由需要的全部处理器。
type Handlers struct {
	Auth         *AuthHandler
	Chat         *ChatHandler
	Search       *SearchHandler
	Tools        *ToolHandler
	Documents    *DocumentHandler
	Status       *StatusHandler
	Conversation *ConversationHandler
}

// NewRouter 注册 /api/v1 下的全部路由。问答接口按客户端 IP 限流，
// 上传与重建索引需要运维人员 token。
func NewRouter(h Handlers, jwtManager *token.JWTManager, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/auth/login", h.Auth.Login)

		chat := apiV1.Group("/chat")
		chat.Use(limiter.Middleware())
		{
			chat.POST("/ask", h.Chat.Ask)
			chat.GET("/ws", h.Chat.Handle)
		}

		apiV1.GET("/search", h.Search.Search)
		apiV1.GET("/context", h.Search.Context)

		apiV1.GET("/tools", h.Tools.List)
		apiV1.POST("/tools/:name", h.Tools.Run)

		apiV1.GET("/documents", h.Documents.ListDocuments)
		operator := apiV1.Group("/documents")
		operator.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(service.OperatorRole))
		{
			operator.POST("", h.Documents.UploadDocument)
			operator.POST("/:id/reindex", h.Documents.ReindexDocument)
		}

		apiV1.GET("/status", h.Status.Status)
		apiV1.GET("/stats", h.Status.Stats)

		apiV1.GET("/conversation", h.Conversation.GetConversation)
		apiV1.DELETE("/conversation", h.Conversation.ClearConversation)
	}
	return r
}
