package extractor

import (
	"bytes"
	"context"
	"strings"

	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/pkg/tika"
)

// Tika 的结果经过 OCR 等路径，整体置信度打折。
const tikaConfidenceFactor = 0.9

type tikaExtractor struct {
	client *tika.Client
}

// NewTikaExtractor 通过 Tika 服务器提取，支持扫描件等无文本层的文件。
func NewTikaExtractor(client *tika.Client) Extractor {
	return &tikaExtractor{client: client}
}

func (t *tikaExtractor) Name() string { return "tika" }

func (t *tikaExtractor) Extract(ctx context.Context, fileName string, data []byte) (*model.Extraction, error) {
	text, err := t.client.ExtractText(ctx, bytes.NewReader(data), fileName)
	if err != nil {
		return nil, err
	}
	raw := strings.Split(text, "\f")
	pages := make([]model.PageText, 0, len(raw))
	for i, p := range raw {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pages = append(pages, model.PageText{Number: i + 1, Text: p})
	}
	total := len(raw)
	// 末尾换页符会多切出一个空页
	if total > 1 && strings.TrimSpace(raw[total-1]) == "" {
		total--
	}
	return &model.Extraction{
		Text:       joinPages(pages),
		Pages:      pages,
		Confidence: pageConfidence(pages, total) * tikaConfidenceFactor,
		Method:     "tika",
	}, nil
}
