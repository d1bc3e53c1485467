// Package storage 提供原始 PDF 与处理结果的对象存储（MinIO 或本地目录）。
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"pizzeria-rag-go/internal/config"
)

// ErrObjectNotFound 对象不存在。
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore 以斜杠分隔的 key 读写对象。
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// New 根据 storage.backend 创建对象存储。
func New(ctx context.Context, storageCfg config.StorageConfig, minioCfg config.MinIOConfig) (ObjectStore, error) {
	switch strings.ToLower(storageCfg.Backend) {
	case "minio":
		return NewMinIO(ctx, minioCfg)
	case "local", "":
		return NewLocal(storageCfg.LocalDir)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", storageCfg.Backend)
	}
}

// RawKey 原始 PDF 的 key。
func RawKey(fileName string) string {
	return path.Join("raw", path.Base(fileName))
}

// ProcessedKey 处理结果的 key。
func ProcessedKey(documentID string) string {
	return path.Join("processed", documentID+"_processed.json")
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)[1:]
	if k == "" || k == "." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return k, nil
}
