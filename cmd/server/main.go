// Package main 是 HTTP 服务的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pizzeria-rag-go/internal/app"
	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/internal/handler"
	"pizzeria-rag-go/internal/middleware"
	"pizzeria-rag-go/internal/pipeline"
	"pizzeria-rag-go/internal/service"
	"pizzeria-rag-go/internal/watcher"
	"pizzeria-rag-go/pkg/log"
	"pizzeria-rag-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("PIZZERIA_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 初始化全部组件
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer a.Close()

	if n, err := a.SyncRawFiles(ctx); err != nil {
		log.Warnf("同步原始 PDF 失败: %v", err)
	} else if n > 0 {
		log.Infof("已同步 %d 个原始 PDF 到对象存储", n)
	}

	// 4. 启动入库队列 (Kafka 或进程内)
	queue := a.StartQueue(ctx)
	intake := pipeline.NewIntake(a.Registry, a.Objects, queue)

	// 4.1 监听原始 PDF 目录
	if cfg.Paths.Watch {
		w := watcher.New(cfg.Paths.RawPDFs, intake, watcher.DefaultDebounce)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Errorf("目录监听退出: %v", err)
			}
		}()
	}

	// 5. 初始化 Service 与 Handler
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	authService := service.NewAuthService(cfg.Auth, jwtManager)
	conversationService := service.NewConversationService(a.Conversations)

	// 6. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		Chat:         handler.NewChatHandler(a.RAG),
		Search:       handler.NewSearchHandler(a.Store, a.Aggregator),
		Tools:        handler.NewToolHandler(a.Toolset),
		Documents:    handler.NewDocumentHandler(a.Registry, intake),
		Status:       handler.NewStatusHandler(a.RAG, a.Store),
		Conversation: handler.NewConversationHandler(conversationService),
	}, jwtManager, middleware.NewRateLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst))

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止接收新任务，等待进程内队列处理完已缓冲的文档
	if err := queue.Close(); err != nil {
		log.Errorf("关闭入库队列失败: %v", err)
	}
	cancel()
	log.Info("服务已优雅关闭")
}
