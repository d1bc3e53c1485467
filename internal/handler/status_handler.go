package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"pizzeria-rag-go/internal/model"
)

// StatusReporter 系统状态来源。
type StatusReporter interface {
	SystemStatus(ctx context.Context) model.SystemStatus
}

// StatsReporter 向量库统计来源。
type StatsReporter interface {
	Stats(ctx context.Context) model.StoreStats
}

// StatusHandler 健康检查与统计。
type StatusHandler struct {
	status StatusReporter
	stats  StatsReporter
}

// NewStatusHandler 创建一个新的 StatusHandler。
func NewStatusHandler(status StatusReporter, stats StatsReporter) *StatusHandler {
	return &StatusHandler{status: status, stats: stats}
}

// Status 模型与嵌入服务可达性、各集合统计、文件存在情况。
func (h *StatusHandler) Status(c *gin.Context) {
	ok(c, "success", h.status.SystemStatus(c.Request.Context()))
}

// Stats 各集合分块数。
func (h *StatusHandler) Stats(c *gin.Context) {
	ok(c, "success", h.stats.Stats(c.Request.Context()))
}
