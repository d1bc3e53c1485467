// Package app 组装服务端与命令行共用的组件。
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"pizzeria-rag-go/internal/allergen"
	"pizzeria-rag-go/internal/chunker"
	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/extractor"
	"pizzeria-rag-go/internal/model"
	"pizzeria-rag-go/internal/parser"
	"pizzeria-rag-go/internal/pipeline"
	"pizzeria-rag-go/internal/registry"
	"pizzeria-rag-go/internal/repository"
	"pizzeria-rag-go/internal/retrieval"
	"pizzeria-rag-go/internal/service"
	"pizzeria-rag-go/internal/tools"
	"pizzeria-rag-go/internal/vectorstore"
	"pizzeria-rag-go/pkg/database"
	"pizzeria-rag-go/pkg/embedding"
	"pizzeria-rag-go/pkg/kafka"
	"pizzeria-rag-go/pkg/llm"
	"pizzeria-rag-go/pkg/log"
	"pizzeria-rag-go/pkg/storage"
	"pizzeria-rag-go/pkg/tasks"
	"pizzeria-rag-go/pkg/tika"
)

// App 持有全部已初始化的组件。MySQL 与 Redis 未配置时 DB、Redis 为空。
type App struct {
	Config        *config.Config
	DB            *gorm.DB
	Redis         *redis.Client
	Registry      registry.Registry
	Objects       storage.ObjectStore
	Processed     *storage.Processed
	Embedder      embedding.Client
	LLM           llm.Client
	Analyzer      *allergen.Analyzer
	Store         *vectorstore.Store
	Aggregator    *retrieval.Aggregator
	Processor     *pipeline.Processor
	RAG           *service.RAGService
	Toolset       *tools.Toolset
	Conversations repository.ConversationRepository

	closers []func() error
}

// New 按配置初始化所有组件。失败时已打开的连接会被关闭。
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg, Analyzer: allergen.NewAnalyzer(nil)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// 1. 数据库与缓存
	var docRepo repository.DocumentRepository
	var chunkRepo repository.DocumentChunkRepository
	if cfg.Database.MySQL.DSN != "" {
		if a.DB, err = database.OpenMySQL(cfg.Database.MySQL.DSN, &model.DocumentInfo{}, &model.DocumentChunk{}); err != nil {
			return nil, err
		}
		if sqlDB, dbErr := a.DB.DB(); dbErr == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		docRepo = repository.NewDocumentRepository(a.DB)
		chunkRepo = repository.NewDocumentChunkRepository(a.DB)
	}
	if cfg.Database.Redis.Addr != "" {
		if a.Redis, err = database.OpenRedis(ctx, cfg.Database.Redis); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.Redis.Close)
		a.Conversations = repository.NewConversationRepository(a.Redis)
	}

	// 2. 注册表：配置声明优先，目录中发现的 PDF 补充
	seed, err := registry.Seed(cfg.Documents, cfg.Paths.RawPDFs)
	if err != nil {
		return nil, err
	}
	if docRepo != nil {
		if a.Registry, err = registry.NewPersistent(docRepo, seed...); err != nil {
			return nil, err
		}
	} else {
		a.Registry = registry.NewStatic(seed...)
	}

	// 3. 对象存储
	if a.Objects, err = storage.New(ctx, cfg.Storage, cfg.MinIO); err != nil {
		return nil, err
	}
	a.Processed = storage.NewProcessed(a.Objects)

	// 4. 模型客户端
	if a.Embedder, err = embedding.NewClient(cfg.Embedding); err != nil {
		return nil, err
	}
	if a.LLM, err = llm.NewClient(cfg.LLM); err != nil {
		return nil, err
	}

	// 5. 向量库与检索
	backend, err := vectorstore.NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	a.Store = vectorstore.NewStore(cfg.VectorStore, cfg.Embedding.Dimensions, backend, a.Embedder, a.Registry, a.Processed)
	a.closers = append(a.closers, a.Store.Close)
	a.Aggregator = retrieval.New(a.Store, a.Registry, cfg.Retrieval)
	a.Toolset = tools.NewToolset(a.Store, a.Analyzer, cfg.Tools)

	// 6. 入库流程
	chain, err := extractor.New(cfg.Extractor, tika.NewClient(cfg.Tika))
	if err != nil {
		return nil, err
	}
	a.Processor = pipeline.NewProcessor(pipeline.Deps{
		Registry:   a.Registry,
		Objects:    a.Objects,
		Processed:  a.Processed,
		Extractor:  chain,
		Classifier: parser.NewClassifier(nil),
		Chunker:    chunker.New(cfg.Chunker),
		Analyzer:   a.Analyzer,
		Chunks:     chunkRepo,
		Indexer:    a.Store,
	}, cfg.Ingest.MinQuality)

	// 7. 问答
	deps := service.Deps{
		Retriever: a.Aggregator,
		Registry:  a.Registry,
		Analyzer:  a.Analyzer,
		LLM:       a.LLM,
		Embedder:  a.Embedder,
		Stats:     a.Store,
		Objects:   a.Objects,
		Processed: a.Processed,
	}
	if a.Conversations != nil {
		deps.Conversations = a.Conversations
	}
	a.RAG = service.NewRAGService(cfg.LLM, deps)

	log.Infof("[App] 初始化完成: %d 个文档, 向量库 %s, 存储 %s", len(a.Registry.AllDocumentIDs()), a.Store.BackendName(), cfg.Storage.Backend)
	return a, nil
}

// SyncRawFiles 把 paths.raw_pdfs 中已注册但尚未进入对象存储的 PDF 上传过去，已存在则跳过。
func (a *App) SyncRawFiles(ctx context.Context) (int, error) {
	uploaded := 0
	for _, info := range a.Registry.List() {
		name := info.PDFFile
		if name == "" {
			name = info.DocumentID + ".pdf"
		}
		key := storage.RawKey(name)
		exists, err := a.Objects.Exists(ctx, key)
		if err != nil {
			return uploaded, fmt.Errorf("check %s: %w", key, err)
		}
		if exists {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.Config.Paths.RawPDFs, name))
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("[App] 文档 %s 的 PDF %s 不存在，跳过", info.DocumentID, name)
			continue
		}
		if err != nil {
			return uploaded, err
		}
		if err := a.Objects.Put(ctx, key, data, "application/pdf"); err != nil {
			return uploaded, fmt.Errorf("upload %s: %w", name, err)
		}
		uploaded++
		log.Infof("[App] 已同步原始文件 %s", name)
	}
	return uploaded, nil
}

// StartQueue 配置了 Kafka 时返回生产者并在后台运行消费者，否则启动进程内队列。
// 返回的队列需由调用方 Close。
func (a *App) StartQueue(ctx context.Context) tasks.Queue {
	if a.Config.Kafka.Brokers != "" {
		consumer := kafka.NewConsumer(a.Config.Kafka, a.Redis, a.Processor)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Errorf("[App] Kafka 消费者退出: %v", err)
			}
		}()
		return kafka.NewProducer(a.Config.Kafka)
	}
	q := tasks.NewInlineQueue(a.Processor, 0)
	q.Start(ctx)
	return q
}

// Close 逆序关闭已打开的连接。
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warnf("[App] 关闭资源失败: %v", err)
		}
	}
	a.closers = nil
}
