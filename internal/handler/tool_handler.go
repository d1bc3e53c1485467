package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pizzeria-rag-go/internal/tools"
	"pizzeria-rag-go/pkg/log"
)

// ToolHandler 暴露检索工具。
type ToolHandler struct {
	toolset *tools.Toolset
}

// NewToolHandler 创建一个新的 ToolHandler。
func NewToolHandler(toolset *tools.Toolset) *ToolHandler {
	return &ToolHandler{toolset: toolset}
}

type toolRequest struct {
	Query string `json:"query" binding:"required"`
}

// List 列出工具名称与说明。
func (h *ToolHandler) List(c *gin.Context) {
	caps := h.toolset.All()
	out := make([]gin.H, 0, len(caps))
	for _, t := range caps {
		out = append(out, gin.H{"name": t.Name(), "description": t.Description()})
	}
	ok(c, "success", out)
}

// Run 执行指定工具。
func (h *ToolHandler) Run(c *gin.Context) {
	var req toolRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		fail(c, http.StatusBadRequest, "query 不能为空")
		return
	}
	name := c.Param("name")
	result, err := h.toolset.Run(c.Request.Context(), name, req.Query)
	if err != nil {
		log.Warnf("[ToolHandler] 工具 %s 执行失败: %v", name, err)
		fail(c, statusFor(err), err.Error())
		return
	}
	ok(c, "success", result)
}
