// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/pkg/log"
	"pizzeria-rag-go/pkg/tasks"
)

const attemptsTTL = 24 * time.Hour

// Producer 把入库任务写入 Kafka，实现 tasks.Queue。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg.Brokers)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}}
	log.Info("[Kafka] 生产者初始化成功")
	return p
}

// Enqueue 以文档 ID 作为消息 key，同一文档的任务落在同一分区、按序消费。
func (p *Producer) Enqueue(ctx context.Context, task tasks.IngestTask) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(task.DocumentID), Value: taskBytes})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer 消费入库任务，失败次数记在 Redis 中，达到上限后提交 offset 放弃重试。
type Consumer struct {
	reader      *kafka.Reader
	rdb         *redis.Client
	processor   tasks.TaskProcessor
	maxAttempts int64
}

// NewConsumer 创建消费者，rdb 为空时失败任务不提交、交给 Kafka 重投。
func NewConsumer(cfg config.KafkaConfig, rdb *redis.Client, processor tasks.TaskProcessor) *Consumer {
	maxAttempts := int64(cfg.MaxAttempts)
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: r, rdb: rdb, processor: processor, maxAttempts: maxAttempts}
}

// Run 阻塞直到 ctx 取消。
func (c *Consumer) Run(ctx context.Context) error {
	log.Infof("[Kafka] 消费者已启动，正在监听主题 '%s'", c.reader.Config().Topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("[Kafka] 关闭消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("从 Kafka 读取消息失败: %w", err)
		}
		log.Infof("[Kafka] 收到消息: partition %d offset %d", m.Partition, m.Offset)
		if c.handle(ctx, m.Value) {
			if err := c.reader.CommitMessages(ctx, m); err != nil {
				log.Errorf("[Kafka] 提交 offset 失败: %v", err)
			}
		}
	}
}

// handle 返回是否提交 offset。
func (c *Consumer) handle(ctx context.Context, value []byte) bool {
	var task tasks.IngestTask
	if err := json.Unmarshal(value, &task); err != nil || task.DocumentID == "" {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("[Kafka] 无法解析消息: %v, value: %s", err, string(value))
		return true
	}

	attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.DocumentID)
	if err := c.processor.Process(ctx, task); err != nil {
		log.Errorf("[Kafka] 处理文档 %s 失败: %v", task.DocumentID, err)
		if c.rdb == nil {
			return false
		}
		attempts, incErr := c.rdb.Incr(ctx, attemptsKey).Result()
		if incErr != nil {
			// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
			return false
		}
		_ = c.rdb.Expire(ctx, attemptsKey, attemptsTTL).Err()
		if attempts >= c.maxAttempts {
			log.Errorf("[Kafka] 文档 %s 失败 %d 次，提交 offset 终止重试", task.DocumentID, attempts)
			return true
		}
		return false
	}

	log.Infof("[Kafka] 文档 %s 处理成功", task.DocumentID)
	if c.rdb != nil {
		_ = c.rdb.Del(ctx, attemptsKey).Err()
	}
	return true
}

func brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
