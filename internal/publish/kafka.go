package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/kjstillabower/station-collector/internal/models"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Timeout time.Duration
}

// KafkaPublisher produces each observation to a single topic keyed by
// station id, so a station's observations stay ordered within a partition.
type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KafkaPublisher{client: client, topic: cfg.Topic, timeout: timeout, logger: logger}, nil
}

func newKafkaRecord(topic string, rec models.ObservationRecord) (*kgo.Record, error) {
	value, err := encode(rec)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(rec.StationID),
		Value: value,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, rec models.ObservationRecord) (err error) {
	defer func() { recordResult(BackendKafka, err) }()

	msg, err := newKafkaRecord(p.topic, rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	for _, r := range p.client.ProduceSync(ctx, msg) {
		if r.Err != nil {
			return fmt.Errorf("produce observation: %w", r.Err)
		}
	}
	p.logger.Debug("published observation", zap.String("topic", p.topic), zap.String("station_id", rec.StationID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}
