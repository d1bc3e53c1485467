package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/pkg/log"
	"pizzeria-rag-go/pkg/storage"
	"pizzeria-rag-go/pkg/tasks"
)

// ErrNotPDF 上传的文件不是 PDF。
var ErrNotPDF = errors.New("file is not a PDF")

var pdfMagic = []byte("%PDF")

// Upload 一次提交的 PDF。DocumentID 为空时由文件名推导。
type Upload struct {
	FileName    string
	Data        []byte
	DocumentID  string
	Description string
	RequestedBy string
}

// Intake 接收新 PDF：写入对象存储、注册、投递入库任务。
// HTTP 上传与目录监听共用。
type Intake struct {
	registry registry.Registry
	objects  storage.ObjectStore
	queue    tasks.Queue
}

// NewIntake 创建一个新的 Intake。
func NewIntake(reg registry.Registry, objects storage.ObjectStore, queue tasks.Queue) *Intake {
	return &Intake{registry: reg, objects: objects, queue: queue}
}

// Submit 已注册的文档保留原有描述，除非本次显式提供。
func (i *Intake) Submit(ctx context.Context, up Upload) (model.DocumentInfo, error) {
	name := filepath.Base(up.FileName)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") || !bytes.HasPrefix(up.Data, pdfMagic) {
		return model.DocumentInfo{}, fmt.Errorf("%s: %w", name, ErrNotPDF)
	}

	info := registry.InfoFromFile(name)
	if up.DocumentID != "" {
		info.DocumentID = up.DocumentID
	}
	if existing, err := i.registry.Get(info.DocumentID); err == nil {
		existing.PDFFile = name
		info = existing
	}
	if up.Description != "" {
		info.Description = up.Description
	}

	if err := i.objects.Put(ctx, storage.RawKey(name), up.Data, "application/pdf"); err != nil {
		return info, fmt.Errorf("store %s: %w", name, err)
	}
	if err := i.registry.Register(info); err != nil {
		return info, err
	}
	if err := i.enqueue(ctx, info, up.RequestedBy); err != nil {
		return info, err
	}
	log.Infof("[Intake] 文档 %s (%s) 已提交入库", info.DocumentID, name)
	return info, nil
}

// Reindex 为已注册文档重新投递入库任务。
func (i *Intake) Reindex(ctx context.Context, documentID, requestedBy string) error {
	info, err := i.registry.Get(documentID)
	if err != nil {
		return err
	}
	return i.enqueue(ctx, info, requestedBy)
}

func (i *Intake) enqueue(ctx context.Context, info model.DocumentInfo, requestedBy string) error {
	task := tasks.IngestTask{
		DocumentID:  info.DocumentID,
		FileName:    info.PDFFile,
		RequestedBy: requestedBy,
		EnqueuedAt:  time.Now(),
	}
	if err := i.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", info.DocumentID, err)
	}
	return nil
}
