// Package extractor 从原始 PDF 中提取按页划分的文本。
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/pkg/log"
	"pizzeria-rag-go/pkg/tika"
)

// ErrExtractionFailed 所有提取器都没有产出文本。
var ErrExtractionFailed = errors.New("extraction failed")

// Extractor 单一的文本提取方式。
type Extractor interface {
	Name() string
	Extract(ctx context.Context, fileName string, data []byte) (*model.Extraction, error)
}

// Chain 按顺序尝试各提取器，第一个达到最低置信度的结果胜出；
// 都未达到时返回置信度最高的非空结果。
type Chain struct {
	extractors    []Extractor
	minConfidence float64
}

// NewChain 直接由提取器列表构造。
func NewChain(minConfidence float64, extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors, minConfidence: minConfidence}
}

// New 根据配置顺序组装提取链；未配置 Tika 地址时跳过 tika。
func New(cfg config.ExtractorConfig, tikaClient *tika.Client) (*Chain, error) {
	var list []Extractor
	for _, name := range cfg.Order {
		switch strings.ToLower(name) {
		case "pdf":
			list = append(list, NewPDFExtractor())
		case "tika":
			if tikaClient.Enabled() {
				list = append(list, NewTikaExtractor(tikaClient))
			}
		default:
			return nil, fmt.Errorf("unknown extractor %q", name)
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no extractor configured")
	}
	return NewChain(cfg.MinConfidence, list...), nil
}

// Extract 依次尝试，失败的提取器只记录日志。
func (c *Chain) Extract(ctx context.Context, fileName string, data []byte) (*model.Extraction, error) {
	var best *model.Extraction
	for _, e := range c.extractors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.Extract(ctx, fileName, data)
		if err != nil {
			log.Warnf("[Extractor] %s 提取 %s 失败: %v", e.Name(), fileName, err)
			continue
		}
		if strings.TrimSpace(res.Text) == "" {
			log.Warnf("[Extractor] %s 提取 %s 结果为空", e.Name(), fileName)
			continue
		}
		log.Infof("[Extractor] %s 提取 %s 完成, 页数: %d, 置信度: %.2f", e.Name(), fileName, len(res.Pages), res.Confidence)
		if res.Confidence >= c.minConfidence {
			return res, nil
		}
		if best == nil || res.Confidence > best.Confidence {
			best = res
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, fmt.Errorf("%s: %w", fileName, ErrExtractionFailed)
}

// pageConfidence 有文本的页面占比，再按可读字符比例折算。
func pageConfidence(pages []model.PageText, total int) float64 {
	if total == 0 {
		return 0
	}
	withText, letters, chars := 0, 0, 0
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			withText++
		}
		for _, r := range p.Text {
			if unicode.IsSpace(r) {
				continue
			}
			chars++
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
				letters++
			}
		}
	}
	if chars == 0 {
		return 0
	}
	return float64(withText) / float64(total) * float64(letters) / float64(chars)
}

func joinPages(pages []model.PageText) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
