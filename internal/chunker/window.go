// Package chunker 将提取出的文本切分为带元数据的分块。
//
// 所有策略共用同一个按词滑动窗口 WordWindow；结构化切分（Chunker.CreateChunks）
// 与向量库的按页切分（PageChunks）只是使用不同的窗口参数。
package chunker

import (
	"fmt"
	"strings"

	"pizzeria-rag-go/internal/model"
)

// WordWindow 按词切分，每个窗口最多 size 个词，相邻窗口共享 overlap 个词。
// 末尾不足一个窗口的部分仍会输出；窗口到达文本末尾后停止。
func WordWindow(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || size <= 0 {
		return nil
	}
	step := size - overlap
	if overlap < 0 || step <= 0 {
		step = size
	}

	var windows []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return windows
}

// PageMeta 按页切分时附带的文档级元数据。
type PageMeta struct {
	DocumentID  string
	ContentType string
	Language    string
}

// PageChunks 对每一页单独切分，ID 形如 {doc}_page_{p}_chunk_{j}，在文档内唯一。
func PageChunks(meta PageMeta, sections []model.Section, size, overlap int) []model.Chunk {
	var chunks []model.Chunk
	for _, sec := range sections {
		for j, text := range WordWindow(sec.Content, size, overlap) {
			chunks = append(chunks, model.Chunk{
				ID:      PageChunkID(meta.DocumentID, sec.Page, j),
				Content: text,
				Metadata: model.ChunkMetadata{
					SourceDocument: meta.DocumentID,
					PageOrSection:  sec.Page,
					ChunkIndex:     j,
					WordCount:      len(strings.Fields(text)),
					ContentType:    meta.ContentType,
					ChunkType:      model.ChunkTypePage,
					Language:       meta.Language,
				},
			})
		}
	}
	return chunks
}

// PageChunkID 生成按页分块的 ID。
func PageChunkID(documentID string, page, index int) string {
	return fmt.Sprintf("%s_page_%d_chunk_%d", documentID, page, index)
}

// StructuredChunkID 生成结构化分块的 ID。
func StructuredChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_structured_chunk_%d", documentID, index)
}
