package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pizzeria-rag-go/internal/middleware"
	"pizzeria-rag-go/internal/pipeline"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/pkg/log"
	"pizzeria-rag-go/pkg/token"
)

// maxUploadSize 单个菜单 PDF 的上限。
const maxUploadSize = 50 << 20

// DocumentHandler 负责文档列表、上传与重建索引。
type DocumentHandler struct {
	registry registry.Registry
	intake   *pipeline.Intake
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(reg registry.Registry, intake *pipeline.Intake) *DocumentHandler {
	return &DocumentHandler{registry: reg, intake: intake}
}

// ListDocuments 按注册顺序列出文档。
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	ok(c, "success", h.registry.List())
}

// UploadDocument 接收 multipart 表单中的 file 字段，可选 documentId 与 description。
// 任务入队后立即返回 202。
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "缺少文件字段 file")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "无法读取上传文件")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, "无法读取上传文件")
		return
	}

	info, err := h.intake.Submit(c.Request.Context(), pipeline.Upload{
		FileName:    fileHeader.Filename,
		Data:        data,
		DocumentID:  c.PostForm("documentId"),
		Description: c.PostForm("description"),
		RequestedBy: operatorName(c),
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrNotPDF) {
			fail(c, http.StatusBadRequest, "只支持 PDF 文件")
			return
		}
		log.Errorf("[DocumentHandler] 上传 %s 失败: %v", fileHeader.Filename, err)
		fail(c, http.StatusInternalServerError, "文档提交失败")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "文档已提交处理", "data": info})
}

// ReindexDocument 重新处理已注册文档。
func (h *DocumentHandler) ReindexDocument(c *gin.Context) {
	id := c.Param("id")
	if err := h.intake.Reindex(c.Request.Context(), id, operatorName(c)); err != nil {
		log.Warnf("[DocumentHandler] 重建索引 %s 失败: %v", id, err)
		fail(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "重建索引任务已提交", "data": gin.H{"documentId": id}})
}

func operatorName(c *gin.Context) string {
	if v, exists := c.Get(middleware.ClaimsKey); exists {
		if claims, isClaims := v.(*token.CustomClaims); isClaims {
			return claims.Username
		}
	}
	return ""
}
