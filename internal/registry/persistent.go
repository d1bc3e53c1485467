package registry

import (
	"fmt"

	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/repository"
	"pizzeria-rag-go/pkg/log"
)

// Persistent 在内存注册表之上把注册项写入 documents 表，重启后恢复。
type Persistent struct {
	*Static
	repo repository.DocumentRepository
}

// NewPersistent 先写入种子项，再按库中顺序加载全部记录。
func NewPersistent(repo repository.DocumentRepository, seed ...model.DocumentInfo) (*Persistent, error) {
	for i := range seed {
		if err := repo.Upsert(&seed[i]); err != nil {
			return nil, fmt.Errorf("failed to persist document %s: %w", seed[i].DocumentID, err)
		}
	}
	rows, err := repo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	log.Infof("[Registry] 从数据库加载了 %d 个文档", len(rows))
	return &Persistent{Static: NewStatic(rows...), repo: repo}, nil
}

// Register 先落库再更新内存。
func (p *Persistent) Register(info model.DocumentInfo) error {
	if info.DocumentID == "" {
		return fmt.Errorf("document id is required")
	}
	if err := p.repo.Upsert(&info); err != nil {
		return fmt.Errorf("failed to persist document %s: %w", info.DocumentID, err)
	}
	return p.Static.Register(info)
}
