package extractor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"pizzeria-rag-go/internal/model"
)

type pdfExtractor struct{}

// NewPDFExtractor 进程内解析 PDF 文本层，不依赖外部服务。
func NewPDFExtractor() Extractor {
	return pdfExtractor{}
}

func (pdfExtractor) Name() string { return "pdf" }

func (pdfExtractor) Extract(ctx context.Context, fileName string, data []byte) (ext *model.Extraction, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file %s", fileName)
	}
	// 损坏的文件可能让解析库 panic
	defer func() {
		if r := recover(); r != nil {
			ext, err = nil, fmt.Errorf("parse %s: %v", fileName, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", fileName, err)
	}

	total := r.NumPage()
	pages := make([]model.PageText, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, model.PageText{Number: i, Text: text})
	}

	return &model.Extraction{
		Text:       joinPages(pages),
		Pages:      pages,
		Confidence: pageConfidence(pages, total),
		Method:     "pdf",
	}, nil
}
