// Package config 负责加载和管理应用程序的配置。
//
// 配置以值的形式返回，由 main 将各个分段显式传入对应组件的构造函数。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Qdrant        QdrantConfig        `mapstructure:"qdrant"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Paths         PathsConfig         `mapstructure:"paths"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	VectorStore   VectorStoreConfig   `mapstructure:"vector_store"`
	Chunker       ChunkerConfig       `mapstructure:"chunker"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Extractor     ExtractorConfig     `mapstructure:"extractor"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Tools         ToolsConfig         `mapstructure:"tools"`
	Documents     []DocumentConfig    `mapstructure:"documents"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port      string          `mapstructure:"port"`
	Mode      string          `mapstructure:"mode"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig 限制问答接口的请求速率（按客户端 IP）。
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 为空 DSN 时注册表退化为纯内存实现。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 为空地址时不记录会话历史。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// AuthConfig 列出可以管理文档的运维账号（密码为 bcrypt 哈希）。
type AuthConfig struct {
	Operators []OperatorConfig `mapstructure:"operators"`
}

type OperatorConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 为空 Brokers 时使用进程内队列。
type KafkaConfig struct {
	Brokers     string `mapstructure:"brokers"`
	Topic       string `mapstructure:"topic"`
	GroupID     string `mapstructure:"group_id"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// TikaConfig 为空地址时不启用 Tika 提取。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// QdrantConfig 存储 Qdrant gRPC 连接配置。
type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	UseTLS bool   `mapstructure:"use_tls"`
}

// SQLiteConfig 存储本地向量库文件位置。
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// StorageConfig 选择原始 PDF 与处理结果的存放位置：minio 或 local。
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`
	LocalDir string `mapstructure:"local_dir"`
}

// PathsConfig 原始 PDF 目录，启动时自动发现并可选监听新增文件。
type PathsConfig struct {
	RawPDFs string `mapstructure:"raw_pdfs"`
	Watch   bool   `mapstructure:"watch"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	CacheSize  int           `mapstructure:"cache_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	Provider     string              `mapstructure:"provider"`
	APIKey       string              `mapstructure:"api_key"`
	BaseURL      string              `mapstructure:"base_url"`
	Model        string              `mapstructure:"model"`
	Timeout      time.Duration       `mapstructure:"timeout"`
	SystemPrompt string              `mapstructure:"system_prompt"`
	Generation   LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// VectorStoreConfig 向量库后端与按页切分参数。
type VectorStoreConfig struct {
	Backend               string `mapstructure:"backend"`
	CollectionPrefix      string `mapstructure:"collection_prefix"`
	ChunkSize             int    `mapstructure:"chunk_size"`
	ChunkOverlap          int    `mapstructure:"chunk_overlap"`
	BatchSize             int    `mapstructure:"batch_size"`
	IndexStructuredChunks bool   `mapstructure:"index_structured_chunks"`
}

// ChunkerConfig 结构化切分参数。
type ChunkerConfig struct {
	ChunkSize        int `mapstructure:"chunk_size"`
	ChunkOverlap     int `mapstructure:"chunk_overlap"`
	MenuContextRunes int `mapstructure:"menu_context_runes"`
}

// RetrievalConfig 多公司检索的多样性策略。
type RetrievalConfig struct {
	MaxChunks       int `mapstructure:"max_chunks"`
	MinPerCompany   int `mapstructure:"min_per_company"`
	CapDivisor      int `mapstructure:"cap_divisor"`
	OverFetchFactor int `mapstructure:"over_fetch_factor"`
}

// ExtractorConfig 提取器顺序与最低置信度。
type ExtractorConfig struct {
	Order         []string `mapstructure:"order"`
	MinConfidence float64  `mapstructure:"min_confidence"`
}

// IngestConfig 入库质量阈值。
type IngestConfig struct {
	MinQuality float64 `mapstructure:"min_quality"`
}

// ToolsConfig 各检索能力返回的条数。
type ToolsConfig struct {
	PizzaSearchK      int `mapstructure:"pizza_search_k"`
	AllergenCheckK    int `mapstructure:"allergen_check_k"`
	IngredientLookupK int `mapstructure:"ingredient_lookup_k"`
	NutritionInfoK    int `mapstructure:"nutrition_info_k"`
}

// DocumentConfig 显式声明的文档（一家餐厅一份菜单）。
type DocumentConfig struct {
	ID          string `mapstructure:"id"`
	Description string `mapstructure:"description"`
	Language    string `mapstructure:"language"`
	ContentType string `mapstructure:"content_type"`
	PDFFile     string `mapstructure:"pdf_file"`
}

// Default 返回所有默认值填充后的配置，测试可直接使用。
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("默认配置解析失败: %w", err))
	}
	return &cfg
}

// Load 从指定路径读取 YAML 配置，环境变量 PIZZERIA_* 可覆盖其中的值。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PIZZERIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查互相关联的取值。
func (c *Config) Validate() error {
	switch c.VectorStore.Backend {
	case "memory", "sqlite", "elasticsearch", "qdrant":
	default:
		return fmt.Errorf("未知的向量库后端: %q", c.VectorStore.Backend)
	}
	switch c.Storage.Backend {
	case "minio", "local":
	default:
		return fmt.Errorf("未知的存储后端: %q", c.Storage.Backend)
	}
	if c.VectorStore.ChunkSize <= 0 || c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size 必须为正数")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions 必须为正数")
	}
	if c.Retrieval.MaxChunks <= 0 {
		return fmt.Errorf("retrieval.max_chunks 必须为正数")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.rate_limit.requests_per_second", 2.0)
	v.SetDefault("server.rate_limit.burst", 5)

	v.SetDefault("jwt.access_token_expire_hours", 12)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("kafka.topic", "pizzeria-ingest")
	v.SetDefault("kafka.group_id", "pizzeria-rag-consumer")
	v.SetDefault("kafka.max_attempts", 3)

	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("sqlite.path", "data/vector_db/pizzeria.db")

	v.SetDefault("minio.bucket_name", "pizzeria")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("paths.raw_pdfs", "docs/raw_pdfs")

	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.base_url", "http://localhost:11434")
	v.SetDefault("embedding.model", "mxbai-embed-large")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("embedding.cache_size", 512)
	v.SetDefault("embedding.timeout", 30*time.Second)

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3.2:latest")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.system_prompt", "Tu es un assistant de pizzeria. Réponds en français, sois précis et utile.")
	v.SetDefault("llm.generation.temperature", 0.3)
	v.SetDefault("llm.generation.top_p", 0.9)
	v.SetDefault("llm.generation.max_tokens", 300)

	v.SetDefault("vector_store.backend", "sqlite")
	v.SetDefault("vector_store.collection_prefix", "pizzeria")
	v.SetDefault("vector_store.chunk_size", 500)
	v.SetDefault("vector_store.chunk_overlap", 50)
	v.SetDefault("vector_store.batch_size", 64)

	v.SetDefault("chunker.chunk_size", 1000)
	v.SetDefault("chunker.chunk_overlap", 200)
	v.SetDefault("chunker.menu_context_runes", 200)

	v.SetDefault("retrieval.max_chunks", 5)
	v.SetDefault("retrieval.min_per_company", 2)
	v.SetDefault("retrieval.cap_divisor", 2)
	v.SetDefault("retrieval.over_fetch_factor", 2)

	v.SetDefault("extractor.order", []string{"pdf", "tika"})
	v.SetDefault("extractor.min_confidence", 0.5)
	v.SetDefault("ingest.min_quality", 0.4)

	v.SetDefault("tools.pizza_search_k", 5)
	v.SetDefault("tools.allergen_check_k", 3)
	v.SetDefault("tools.ingredient_lookup_k", 4)
	v.SetDefault("tools.nutrition_info_k", 3)
}
