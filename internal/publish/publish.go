// Package publish fans newly stored observations out to a message broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/station-collector/internal/models"
	"github.com/kjstillabower/station-collector/internal/observability"
)

// Backend names accepted in configuration.
const (
	BackendNone  = "none"
	BackendMQTT  = "mqtt"
	BackendKafka = "kafka"
)

// Publisher delivers an observation to downstream consumers. Publish is
// called only for observations that were newly inserted.
type Publisher interface {
	Publish(ctx context.Context, rec models.ObservationRecord) error
	Close() error
}

// Noop discards every observation.
type Noop struct{}

func (Noop) Publish(context.Context, models.ObservationRecord) error { return nil }
func (Noop) Close() error                                            { return nil }

func encode(rec models.ObservationRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal observation: %w", err)
	}
	return data, nil
}

func recordResult(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.PublishTotal.WithLabelValues(backend, result).Inc()
}
