// Package registry 维护文档（餐厅菜单）ID 到展示名称与元数据的映射。
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/model"
)

// ErrDocumentNotFound 文档 ID 未注册。
var ErrDocumentNotFound = errors.New("document not found")

const discoveredSuffix = " - Pizzeria menu and services"

// Registry 文档注册表。AllDocumentIDs 与 List 的顺序即注册顺序，
// 检索合并与公司识别都依赖这一顺序。
type Registry interface {
	DisplayName(documentID string) string
	AllDocumentIDs() []string
	Get(documentID string) (model.DocumentInfo, error)
	Register(info model.DocumentInfo) error
	List() []model.DocumentInfo
}

// Static 内存实现，并发安全。
type Static struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]model.DocumentInfo
}

// NewStatic 按给定顺序注册文档，重复 ID 以后者为准。
func NewStatic(docs ...model.DocumentInfo) *Static {
	s := &Static{docs: make(map[string]model.DocumentInfo)}
	for _, d := range docs {
		_ = s.Register(d)
	}
	return s
}

// DisplayName 未注册的 ID 直接转成标题形式。
func (s *Static) DisplayName(documentID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.docs[documentID]; ok {
		return d.DisplayName()
	}
	return model.TitleCase(documentID)
}

func (s *Static) AllDocumentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Static) Get(documentID string) (model.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[documentID]
	if !ok {
		return model.DocumentInfo{}, fmt.Errorf("%q: %w", documentID, ErrDocumentNotFound)
	}
	return d, nil
}

// Register 新 ID 追加到末尾；已有 ID 原位更新。
func (s *Static) Register(info model.DocumentInfo) error {
	if info.DocumentID == "" {
		return errors.New("document id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[info.DocumentID]; !ok {
		s.order = append(s.order, info.DocumentID)
	}
	s.docs[info.DocumentID] = info
	return nil
}

func (s *Static) List() []model.DocumentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DocumentInfo, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.docs[id])
	}
	return out
}

// FromConfig 将配置中的 documents 转为注册项。
func FromConfig(docs []config.DocumentConfig) []model.DocumentInfo {
	out := make([]model.DocumentInfo, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.DocumentInfo{
			DocumentID:  d.ID,
			Description: d.Description,
			Language:    defaultString(d.Language, "fr"),
			ContentType: defaultString(d.ContentType, "menu"),
			PDFFile:     d.PDFFile,
		})
	}
	return out
}

// DocumentIDFromFile "Marco-Fuso Menu.pdf" -> "marco_fuso_menu"
func DocumentIDFromFile(fileName string) string {
	stem := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	stem = strings.ToLower(strings.TrimSpace(stem))
	return strings.NewReplacer("-", "_", " ", "_").Replace(stem)
}

// InfoFromFile 自动发现的 PDF 对应的注册项。
func InfoFromFile(fileName string) model.DocumentInfo {
	id := DocumentIDFromFile(fileName)
	return model.DocumentInfo{
		DocumentID:  id,
		Description: model.TitleCase(id) + discoveredSuffix,
		Language:    "fr",
		ContentType: "menu",
		PDFFile:     filepath.Base(fileName),
	}
}

// Discover 扫描目录下的 PDF（按文件名排序）；目录不存在时返回空。
func Discover(dir string) ([]model.DocumentInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var docs []model.DocumentInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		docs = append(docs, InfoFromFile(e.Name()))
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].PDFFile < docs[j].PDFFile })
	return docs, nil
}

// Seed 组合配置项与自动发现结果：配置优先，发现的文件只补充未声明的 ID。
func Seed(docs []config.DocumentConfig, rawPDFDir string) ([]model.DocumentInfo, error) {
	seeded := FromConfig(docs)
	known := make(map[string]bool, len(seeded))
	for _, d := range seeded {
		known[d.DocumentID] = true
	}
	discovered, err := Discover(rawPDFDir)
	if err != nil {
		return seeded, err
	}
	for _, d := range discovered {
		if !known[d.DocumentID] {
			known[d.DocumentID] = true
			seeded = append(seeded, d)
		}
	}
	return seeded, nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
