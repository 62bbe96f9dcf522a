package rabbitmq

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type IPublisher interface {
	PublishMessage(message any) error
	PublishTo(topic string, message any) error
}

// Publisher sends to a default topic with fixed QoS and retain flag.
type Publisher struct {
	client   mqtt.Client
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
}

func NewPublisher(client mqtt.Client, topic string, qos byte, retained bool) *Publisher {
	return &Publisher{
		client:   client,
		topic:    topic,
		qos:      qos,
		retained: retained,
		timeout:  5 * time.Second,
	}
}

func (p *Publisher) PublishMessage(message any) error {
	return p.PublishTo(p.topic, message)
}

// PublishTo accepts string, []byte, or anything encoding/json can marshal.
func (p *Publisher) PublishTo(topic string, message any) error {
	var payload []byte
	switch m := message.(type) {
	case string:
		payload = []byte(m)
	case []byte:
		payload = m
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message for %s: %w", topic, err)
		}
		payload = b
	}

	token := p.client.Publish(topic, p.qos, p.retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	slog.Debug("message published", "topic", topic, "bytes", len(payload), "retained", p.retained)
	return nil
}
