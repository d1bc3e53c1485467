package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pizzeria-rag-go/internal/service"
	"pizzeria-rag-go/pkg/log"
)

// AuthHandler 负责运维人员登录。
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// LoginRequest 定义了登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验账号并返回 access token。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[AuthHandler] 无效的登录请求: %v", err)
		fail(c, http.StatusBadRequest, "无效的请求负载：用户名和密码不能为空")
		return
	}

	accessToken, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			log.Warnf("[AuthHandler] 登录失败, username: %s", req.Username)
			fail(c, http.StatusUnauthorized, "用户名或密码错误")
			return
		}
		log.Errorf("[AuthHandler] 签发 token 失败: %v", err)
		fail(c, http.StatusInternalServerError, "登录失败")
		return
	}

	log.Infof("[AuthHandler] 运维人员 %s 登录成功", req.Username)
	ok(c, "Login successful", gin.H{"token": accessToken})
}
