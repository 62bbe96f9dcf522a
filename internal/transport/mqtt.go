package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/sems_project/internal/metrics"
	"github.com/LeonardoBeccarini/sems_project/internal/model/messages"
	"github.com/LeonardoBeccarini/sems_project/pkg/rabbitmq"
)

type MQTTConfig struct {
	Conn   rabbitmq.RabbitMQConfig
	Topics Topics
	QoS    byte

	BreakerFails    int
	BreakerOpen     time.Duration
	BreakerInterval time.Duration
}

// MQTTStore reads the retained snapshot and prev_month topics and writes
// single fields to <prefix>/set/<field>. The installation applies a write
// and republishes the snapshot; nothing is applied locally.
type MQTTStore struct {
	*hub

	cfg     MQTTConfig
	client  mqtt.Client
	pub     *rabbitmq.Publisher
	breaker *gobreaker.CircuitBreaker
	lg      *slog.Logger
}

func NewMQTTStore(ctx context.Context, cfg MQTTConfig, lg *slog.Logger) (*MQTTStore, error) {
	if lg == nil {
		lg = slog.Default()
	}
	s := &MQTTStore{
		hub: newHub(),
		cfg: cfg,
		lg:  lg,
	}
	s.breaker = newWriteBreaker(cfg, lg)

	// marked down until the first connect
	s.markDown(fmt.Errorf("%w: not connected yet", ErrUnavailable))

	conn := cfg.Conn
	conn.OnConnect = s.onConnect
	conn.OnConnectionLost = s.onConnectionLost
	client, err := rabbitmq.NewRabbitMQConn(ctx, &conn)
	if err != nil {
		return nil, err
	}
	s.client = client
	s.pub = rabbitmq.NewPublisher(client, cfg.Topics.Set(messages.FieldMode), cfg.QoS, false)
	return s, nil
}

func (s *MQTTStore) Subscribe(ctx context.Context) (<-chan Update, error) {
	return s.subscribe(ctx), nil
}

// Available reports whether the broker link is up.
func (s *MQTTStore) Available() bool { return s.available() }

func (s *MQTTStore) WriteField(ctx context.Context, w messages.FieldWrite) error {
	if err := messages.ValidateWrite(w.Field, w.Value); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.client == nil || !s.client.IsConnectionOpen() {
		return ErrUnavailable
	}
	return s.guarded(func() error {
		return s.pub.PublishTo(s.cfg.Topics.Set(w.Field), w)
	})
}

func newWriteBreaker(cfg MQTTConfig, lg *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "mqtt-write",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(max(cfg.BreakerFails, 1))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// guarded runs a publish through the breaker. A rejected call means the
// broker is considered down.
func (s *MQTTStore) guarded(publish func() error) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, publish()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (s *MQTTStore) Close() {
	if s.client != nil {
		rabbitmq.CloseRabbitMQConn(s.client)
	}
}

// onConnect runs on every (re)connect. Subscribing again replays the
// retained topics, which lifts the unavailable mark.
func (s *MQTTStore) onConnect(c mqtt.Client) {
	cons := rabbitmq.NewMultiConsumer(c,
		[]string{s.cfg.Topics.State(), s.cfg.Topics.PrevMonth()},
		s.cfg.QoS, s.handle)
	if err := cons.Subscribe(); err != nil {
		s.lg.Error("mqtt subscribe failed", "error", err)
		return
	}
	metrics.TransportAvailable.Set(1)
}

func (s *MQTTStore) onConnectionLost(_ mqtt.Client, err error) {
	metrics.TransportAvailable.Set(0)
	s.markDown(fmt.Errorf("%w: %v", ErrUnavailable, err))
}

func (s *MQTTStore) handle(topic string, msg mqtt.Message) error {
	switch topic {
	case s.cfg.Topics.State():
		snap, issues, err := messages.DecodeSnapshot(msg.Payload())
		if err != nil {
			s.publish(Update{Kind: KindUnavailable, Err: fmt.Errorf("%w: %v", ErrUnavailable, err)})
			return err
		}
		s.publish(Update{Kind: KindSnapshot, Snapshot: snap, Issues: issues})
	case s.cfg.Topics.PrevMonth():
		s.publish(Update{Kind: KindPreviousBill, PreviousBill: messages.DecodePreviousBill(msg.Payload())})
	default:
		s.lg.Debug("ignoring message", "topic", topic)
	}
	return nil
}
