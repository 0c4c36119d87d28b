package mq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(amqp.Table{
		"event":   "post.created",
		"raw":     []byte("bytes"),
		"attempt": int32(2),
	})
	assert.Equal(t, map[string]string{
		"event":   "post.created",
		"raw":     "bytes",
		"attempt": "2",
	}, attrs)
	assert.Nil(t, headersToAttributes(nil))
}

func TestBackendsRejectBlankChannel(t *testing.T) {
	ctx := context.Background()
	noop := func(context.Context, Message) error { return nil }

	rabbit := &RabbitMQClient{}
	_, err := rabbit.Publish(ctx, " ", []byte("{}"), nil)
	assert.EqualError(t, err, "rabbitmq channel is required")
	assert.EqualError(t, rabbit.Subscribe(ctx, "", noop), "rabbitmq channel is required")

	ps := &PubSubClient{}
	_, err = ps.Publish(ctx, "", []byte("{}"), nil)
	assert.EqualError(t, err, "pubsub channel is required")
	assert.EqualError(t, ps.Subscribe(ctx, " ", noop), "pubsub channel is required")
}

func TestNewMessageIDIsUnique(t *testing.T) {
	a, b := newMessageID(), newMessageID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
