package repository

import (
	"context"
	"time"

	domrepo "MarketLens/internal/domain/repository"
	pkgkafka "MarketLens/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

type publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...kafka.Header) error
}

// KafkaReloadNotifier announces threshold reloads. The origin header lets
// the publishing replica skip its own event.
type KafkaReloadNotifier struct {
	producer   publisher
	topic      string
	instanceID string
}

// NewKafkaReloadNotifier creates a Kafka reload notifier.
func NewKafkaReloadNotifier(producer *pkgkafka.Producer, topic, instanceID string) domrepo.ReloadNotifier {
	return newKafkaReloadNotifier(producer, topic, instanceID)
}

func newKafkaReloadNotifier(p publisher, topic, instanceID string) *KafkaReloadNotifier {
	return &KafkaReloadNotifier{producer: p, topic: topic, instanceID: instanceID}
}

func (n *KafkaReloadNotifier) NotifyReload(ctx context.Context) error {
	return n.producer.Publish(ctx, n.topic, []byte(n.instanceID), map[string]interface{}{
		"origin":     n.instanceID,
		"reloadedAt": time.Now().UTC(),
	}, kafka.Header{Key: pkgkafka.OriginHeader, Value: []byte(n.instanceID)})
}
