package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/kjstillabower/station-collector/internal/models"
)

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	Broker      string // e.g. tcp://localhost:1883
	ClientID    string
	TopicPrefix string
	QoS         byte
	Retained    bool
	Timeout     time.Duration
}

// MQTTPublisher publishes each observation to {prefix}/{station_id}/observations.
type MQTTPublisher struct {
	client  mqtt.Client
	cfg     MQTTConfig
	logger  *zap.Logger
	timeout time.Duration
}

// NewMQTTPublisher builds a publisher with auto-reconnect. Call Connect
// before publishing.
func NewMQTTPublisher(cfg MQTTConfig, logger *zap.Logger) *MQTTPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	return newMQTTPublisher(mqtt.NewClient(opts), cfg, logger)
}

func newMQTTPublisher(client mqtt.Client, cfg MQTTConfig, logger *zap.Logger) *MQTTPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTPublisher{client: client, cfg: cfg, logger: logger, timeout: timeout}
}

// Connect waits for the initial broker connection or ctx.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	if p.client.IsConnected() {
		return nil
	}
	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Topic returns the topic an observation for stationID is published to.
func (p *MQTTPublisher) Topic(stationID string) string {
	prefix := strings.TrimSuffix(p.cfg.TopicPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/observations", stationID)
	}
	return fmt.Sprintf("%s/%s/observations", prefix, stationID)
}

func (p *MQTTPublisher) Publish(ctx context.Context, rec models.ObservationRecord) (err error) {
	defer func() { recordResult(BackendMQTT, err) }()

	if !p.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}
	data, err := encode(rec)
	if err != nil {
		return err
	}

	topic := p.Topic(rec.StationID)
	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retained, data)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish observation: %w", err)
	}
	p.logger.Debug("published observation", zap.String("topic", topic), zap.String("station_id", rec.StationID))
	return nil
}

// Close disconnects, letting in-flight work finish for up to 250ms.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
