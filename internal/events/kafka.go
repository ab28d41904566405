package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// KafkaConfig - параметры продюсера событий
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Partitions int32
	Linger     time.Duration
}

// KafkaPublisher пишет события слотов в Kafka/Redpanda
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
	tracer trace.Tracer
}

// NewKafkaPublisher создаёт продюсера и при необходимости создаёт топик
func NewKafkaPublisher(ctx context.Context, cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Linger == 0 {
		cfg.Linger = 20 * time.Millisecond
	}
	if cfg.Partitions == 0 {
		cfg.Partitions = 6
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(cfg.Linger),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.Lz4Compression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &KafkaPublisher{
		client: client,
		topic:  cfg.Topic,
		logger: logger,
		tracer: otel.Tracer("slot-events"),
	}

	if err := p.ensureTopic(ctx, cfg.Partitions); err != nil {
		client.Close()
		return nil, err
	}

	return p, nil
}

func (p *KafkaPublisher) ensureTopic(ctx context.Context, partitions int32) error {
	admin := kadm.NewClient(p.client)

	resp, err := admin.CreateTopics(ctx, partitions, 1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}

	for _, r := range resp {
		if r.Err != nil {
			if errors.Is(r.Err, kerr.TopicAlreadyExists) {
				continue
			}
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
		p.logger.Info("Topic created", zap.String("topic", r.Topic), zap.Int32("partitions", partitions))
	}
	return nil
}

// Publish синхронно отправляет событие; ключ - владелец слота, чтобы события одного
// специалиста сохраняли порядок внутри партиции
func (p *KafkaPublisher) Publish(ctx context.Context, e SlotEvent) error {
	ctx, span := p.tracer.Start(ctx, "publish_slot_event",
		trace.WithAttributes(
			attribute.String("event.type", string(e.Type)),
			attribute.String("slot_id", e.SlotID),
		))
	defer span.End()

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal slot event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.OwnerID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	injectTraceHeaders(ctx, record)

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("produce slot event: %w", err)
	}
	return nil
}

// Close дожидается отправки буфера и закрывает клиента
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("Failed to flush slot events", zap.Error(err))
	}
	p.client.Close()
}

// recordCarrier - заголовки записи kgo как TextMapCarrier для otel
type recordCarrier struct {
	record *kgo.Record
}

func (c recordCarrier) Get(key string) string {
	for _, h := range c.record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c recordCarrier) Set(key, value string) {
	c.record.Headers = append(c.record.Headers, kgo.RecordHeader{Key: key, Value: []byte(value)})
}

func (c recordCarrier) Keys() []string {
	keys := make([]string, 0, len(c.record.Headers))
	for _, h := range c.record.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func injectTraceHeaders(ctx context.Context, record *kgo.Record) {
	otel.GetTextMapPropagator().Inject(ctx, recordCarrier{record: record})
}
