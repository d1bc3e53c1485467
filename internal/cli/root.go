// Package cli 实现 pipeline 命令行：批量入库、状态检查与本地问答。
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pizzeria-rag-go/internal/app"
	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/pkg/log"
)

const skipAppAnnotation = "skip-app"

var (
	configPath string
	verbose    bool

	// application 由 PersistentPreRunE 初始化，测试可预先注入。
	application *app.App

	newApp = func(ctx context.Context, path string) (*app.App, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		log.Init(level, cfg.Log.Format, cfg.Log.OutputPath)
		return app.New(ctx, cfg)
	}
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Pizzeria RAG pipeline",
	Long: `Processes pizzeria menu PDFs into per-document vector collections
and answers questions against them from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations[skipAppAnnotation] == "true" || application != nil {
			return nil
		}
		a, err := newApp(cmd.Context(), configPath)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		application = a
		return nil
	},
}

func init() {
	defaultPath := os.Getenv("PIZZERIA_CONFIG")
	if defaultPath == "" {
		defaultPath = "./configs/config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// Execute 运行根命令。
func Execute(ctx context.Context) error {
	defer func() {
		if application != nil {
			application.Close()
			application = nil
		}
		log.Sync()
	}()
	return rootCmd.ExecuteContext(ctx)
}
