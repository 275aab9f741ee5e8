// Package bus is the in-process event bus connecting the protocol
// engines to the status and metrics surfaces. Subscribers must drain
// their channels; the frame path uses the non-blocking publish so a
// stalled subscriber can never hold up an ack exchange.
package bus

import (
	"log/slog"
	"reflect"

	"github.com/cskr/pubsub"
)

const defaultQueueDepth = 128

type Subscription chan any

// MessageBus fans node events out to any number of subscribers.
// Publish blocks when a subscriber queue is full; TryPublish drops the
// event instead and is the right choice for per-frame traffic.
type MessageBus interface {
	Publish(topic string, msg any)
	TryPublish(topic string, msg any)
	Subscribe(topics ...string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	Close()
}

type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger
}

func New(logger *slog.Logger) *PubSubBus {
	return &PubSubBus{
		ps:     pubsub.New(defaultQueueDepth),
		logger: logger,
	}
}

func (b *PubSubBus) Publish(topic string, msg any) {
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.Pub(msg, topic)
}

// TryPublish delivers to every subscriber with queue room and silently
// drops the event for the rest.
func (b *PubSubBus) TryPublish(topic string, msg any) {
	b.ps.TryPub(msg, topic)
}

// Subscribe returns one channel receiving every event published to any
// of the given topics.
func (b *PubSubBus) Subscribe(topics ...string) Subscription {
	ch := b.ps.Sub(topics...)
	b.logger.Debug("subscribe", "topics", topics)
	return ch
}

func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")
		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

func (b *PubSubBus) Close() {
	b.ps.Shutdown()
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
