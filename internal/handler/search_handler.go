package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/pkg/log"
)

const (
	defaultTopK = 5
	// maxResults 限制 topK 与 maxChunks，避免超出后端单次检索上限。
	maxResults = 50
)

// Searcher 跨集合检索。
type Searcher interface {
	Search(ctx context.Context, query string, documentIDs []string, n int) (*model.SearchResponse, error)
}

// ContextBuilder 检索聚合。
type ContextBuilder interface {
	GetContext(ctx context.Context, query string, documentIDs []string, maxChunks int) (*model.ContextResult, error)
	DefaultMaxChunks() int
}

// SearchHandler 结构体定义了检索相关的处理器。
type SearchHandler struct {
	searcher Searcher
	builder  ContextBuilder
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searcher Searcher, builder ContextBuilder) *SearchHandler {
	return &SearchHandler{searcher: searcher, builder: builder}
}

// positiveInt 缺省或非正数时取 def，超过 maxResults 时截断。
func positiveInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		v = def
	}
	return min(v, maxResults)
}

// Search 返回原始检索结果，按距离升序。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		log.Warnf("[SearchHandler] 搜索请求失败: query 参数为空")
		fail(c, http.StatusBadRequest, "无效的查询参数")
		return
	}
	topK := positiveInt(c, "topK", defaultTopK)
	ids := documentIDs(c)
	log.Infof("[SearchHandler] 收到搜索请求, query: %s, documents: %v, topK: %d", query, ids, topK)

	resp, err := h.searcher.Search(c.Request.Context(), query, ids, topK)
	if err != nil {
		log.Errorf("[SearchHandler] 搜索失败: %v", err)
		fail(c, statusFor(err), err.Error())
		return
	}
	ok(c, "success", resp)
}

// Context 返回按公司分组、应用多样性上限后的上下文。
func (h *SearchHandler) Context(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		fail(c, http.StatusBadRequest, "无效的查询参数")
		return
	}
	maxChunks := positiveInt(c, "maxChunks", h.builder.DefaultMaxChunks())

	result, err := h.builder.GetContext(c.Request.Context(), query, documentIDs(c), maxChunks)
	if err != nil {
		log.Errorf("[SearchHandler] 构建上下文失败: %v", err)
		fail(c, statusFor(err), err.Error())
		return
	}
	ok(c, "success", result)
}
