package repository

import (
	"context"
	"testing"

	pkgkafka "MarketLens/pkg/kafka"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	topic   string
	key     []byte
	headers []kafka.Header
}

func (c *capturePublisher) Publish(_ context.Context, topic string, key []byte, _ interface{}, headers ...kafka.Header) error {
	c.topic, c.key, c.headers = topic, key, headers
	return nil
}

func TestKafkaReloadNotifierSetsOrigin(t *testing.T) {
	p := &capturePublisher{}
	n := newKafkaReloadNotifier(p, "thresholds.reloaded", "node-1")

	require.NoError(t, n.NotifyReload(context.Background()))
	assert.Equal(t, "thresholds.reloaded", p.topic)
	assert.Equal(t, []byte("node-1"), p.key)
	assert.Equal(t, "node-1", pkgkafka.HeaderValue(kafka.Message{Headers: p.headers}, pkgkafka.OriginHeader))
}
