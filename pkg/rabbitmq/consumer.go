package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler receives the topic a message arrived on (not the filter).
type Handler func(topic string, message mqtt.Message) error

// Consumer subscribes one or more topic filters with the same handler.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	qos     byte
	handler Handler
}

func NewConsumer(client mqtt.Client, topic string, qos byte, handler Handler) *Consumer {
	return NewMultiConsumer(client, []string{topic}, qos, handler)
}

func NewMultiConsumer(client mqtt.Client, topics []string, qos byte, handler Handler) *Consumer {
	return &Consumer{
		client:  client,
		topics:  topics,
		qos:     qos,
		handler: handler,
	}
}

func (c *Consumer) SetHandler(handler Handler) { c.handler = handler }

func (c *Consumer) Topics() []string { return append([]string(nil), c.topics...) }

// Subscribe registers every filter and returns. Call it again from an
// OnConnect hook: with a clean session the broker forgets subscriptions on
// reconnect, and resubscribing redelivers retained messages.
func (c *Consumer) Subscribe() error {
	filters := make(map[string]byte, len(c.topics))
	for _, t := range c.topics {
		filters[t] = c.qos
	}
	token := c.client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		if c.handler == nil {
			slog.Warn("no handler set", "topic", msg.Topic())
			return
		}
		if err := c.handler(msg.Topic(), msg); err != nil {
			slog.Error("error handling message", "topic", msg.Topic(), "error", err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %v: %w", c.topics, token.Error())
	}
	slog.Info("subscribed", "topics", c.topics)
	return nil
}

// ConsumeMessage subscribes and blocks until ctx is done, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) error {
	if err := c.Subscribe(); err != nil {
		return err
	}
	<-ctx.Done()
	c.client.Unsubscribe(c.topics...).Wait()
	return nil
}
