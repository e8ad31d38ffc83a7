package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// 事件类型
const (
	TypeImportCompleted = "import.completed"
)

// Event 可发布的事件
type Event interface {
	EventType() string
	// EventKey 分区键，同一连接的事件保持顺序
	EventKey() string
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// ImportCompleted 一次导入结束
type ImportCompleted struct {
	ExecutionID       string    `json:"execution_id"`
	ConnectionID      int64     `json:"connection_id"`
	UserID            string    `json:"user_id"`
	Marketplace       string    `json:"marketplace"`
	ExecutionType     string    `json:"execution_type"`
	Status            string    `json:"status"`
	ProductsFound     int       `json:"products_found"`
	ProductsProcessed int       `json:"products_processed"`
	ProductsImported  int       `json:"products_imported"`
	FinishedAt        time.Time `json:"finished_at"`
}

func (e ImportCompleted) EventType() string { return TypeImportCompleted }

func (e ImportCompleted) EventKey() string { return e.Marketplace + ":" + strconv.FormatInt(e.ConnectionID, 10) }

// envelope 线上格式
type envelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// ==================== Kafka ====================

// KafkaPublisher 写入 Kafka topic
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher 创建 Kafka 发布者
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := encode(event, time.Now())
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EventKey()),
		Value: msg,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ==================== Noop ====================

// NoopPublisher 未配置 broker 时使用
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

func (NoopPublisher) Close() error { return nil }

func encode(event Event, at time.Time) ([]byte, error) {
	return json.Marshal(envelope{
		Type:       event.EventType(),
		OccurredAt: at.UTC(),
		Data:       event,
	})
}
