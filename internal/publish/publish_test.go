package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kjstillabower/station-collector/internal/models"
)

// fakeToken completes immediately unless blocked is set.
type fakeToken struct {
	err     error
	blocked bool
}

func (t *fakeToken) Wait() bool                     { return !t.blocked }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.blocked }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeMQTT implements the parts of mqtt.Client the publisher uses.
type fakeMQTT struct {
	mqtt.Client
	connected bool
	token     *fakeToken
	published []publishedMessage
}

type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (f *fakeMQTT) IsConnected() bool { return f.connected }
func (f *fakeMQTT) Connect() mqtt.Token {
	f.connected = true
	return &fakeToken{}
}
func (f *fakeMQTT) Disconnect(uint) { f.connected = false }
func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.published = append(f.published, publishedMessage{topic, qos, retained, payload.([]byte)})
	if f.token != nil {
		return f.token
	}
	return &fakeToken{}
}

var sample = models.ObservationRecord{StationID: "KBOS", TimestampUTC: "2024-01-15T12:00:00+00:00", TemperatureC: 15, TemperatureF: 59, WindGustKmH: models.MissingValue}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.Publish(context.Background(), sample); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestMQTTPublisher_Topic(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"weather", "weather/KBOS/observations"},
		{"weather/", "weather/KBOS/observations"},
		{"", "KBOS/observations"},
	}
	for _, tt := range tests {
		p := newMQTTPublisher(&fakeMQTT{}, MQTTConfig{TopicPrefix: tt.prefix}, nil)
		if got := p.Topic("KBOS"); got != tt.want {
			t.Errorf("Topic() with prefix %q = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeMQTT{}
	p := newMQTTPublisher(client, MQTTConfig{TopicPrefix: "weather", QoS: 1}, nil)
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := p.Publish(context.Background(), sample); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}
	msg := client.published[0]
	if msg.topic != "weather/KBOS/observations" || msg.qos != 1 || msg.retained {
		t.Errorf("message = %+v", msg)
	}
	var got models.ObservationRecord
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got != sample {
		t.Errorf("payload = %+v, want %+v", got, sample)
	}
}

func TestMQTTPublisher_Publish_Errors(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		p := newMQTTPublisher(&fakeMQTT{}, MQTTConfig{}, nil)
		if err := p.Publish(context.Background(), sample); err == nil {
			t.Error("Publish() expected error when disconnected")
		}
	})
	t.Run("timeout", func(t *testing.T) {
		client := &fakeMQTT{connected: true, token: &fakeToken{blocked: true}}
		p := newMQTTPublisher(client, MQTTConfig{Timeout: time.Millisecond}, nil)
		if err := p.Publish(context.Background(), sample); err == nil {
			t.Error("Publish() expected timeout error")
		}
	})
	t.Run("broker error", func(t *testing.T) {
		brokerErr := errors.New("not authorized")
		client := &fakeMQTT{connected: true, token: &fakeToken{err: brokerErr}}
		p := newMQTTPublisher(client, MQTTConfig{}, nil)
		if err := p.Publish(context.Background(), sample); !errors.Is(err, brokerErr) {
			t.Errorf("Publish() error = %v, want %v", err, brokerErr)
		}
	})
}

func TestMQTTPublisher_Close(t *testing.T) {
	client := &fakeMQTT{connected: true}
	p := newMQTTPublisher(client, MQTTConfig{}, nil)
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.connected {
		t.Error("Close() should disconnect the client")
	}
}

func TestNewKafkaRecord(t *testing.T) {
	rec, err := newKafkaRecord("weather.observations", sample)
	if err != nil {
		t.Fatalf("newKafkaRecord() error = %v", err)
	}
	if rec.Topic != "weather.observations" {
		t.Errorf("Topic = %q", rec.Topic)
	}
	if string(rec.Key) != "KBOS" {
		t.Errorf("Key = %q, want station id", rec.Key)
	}
	var got models.ObservationRecord
	if err := json.Unmarshal(rec.Value, &got); err != nil || got != sample {
		t.Errorf("Value = %s (%v)", rec.Value, err)
	}
}

func TestNewKafkaPublisher(t *testing.T) {
	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "weather.observations"}, nil)
	if err != nil {
		t.Fatalf("NewKafkaPublisher() error = %v", err)
	}
	if p.timeout != 10*time.Second {
		t.Errorf("default timeout = %v, want 10s", p.timeout)
	}
	_ = p.Close()
}
