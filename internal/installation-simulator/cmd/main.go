package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/sems_project/internal/config"
	simulator "github.com/LeonardoBeccarini/sems_project/internal/installation-simulator"
	"github.com/LeonardoBeccarini/sems_project/internal/logging"
	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/services/billing"
	"github.com/LeonardoBeccarini/sems_project/internal/transport"
	"github.com/LeonardoBeccarini/sems_project/pkg/rabbitmq"
)

func main() {
	lg, logFile := logging.Init("installation-simulator")
	if logFile != nil {
		defer logFile.Close()
	}
	cfg := config.Load()

	clientID := flag.String("client-id", "installation-sim", "MQTT client ID")
	prefix := flag.String("prefix", cfg.Prefix, "topic prefix of the installation")
	interval := flag.Duration("interval", 5*time.Second, "publish interval")
	volts := flag.Float64("volts", cfg.Derive.SystemVoltage, "supply voltage")
	scale := flag.Float64("energy-scale", 1000, "multiplier applied to accumulated energy")
	startKWh := flag.Float64("start-kwh", 0, "energy already used this month")
	prevBill := flag.Float64("prev-bill", -1, "previous month's bill in RM, negative to publish none")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	table, _, err := billing.LoadRateTable(cfg.TariffFile)
	if err != nil {
		log.Fatalf("tariff: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topics := transport.Topics{Prefix: *prefix}
	gen := simulator.NewDataGenerator(*seed, *volts, *scale, *startKWh)

	var consumer atomic.Pointer[rabbitmq.Consumer]
	conn := cfg.Rabbit
	conn.ClientID = *clientID
	conn.OnConnect = func(mqtt.Client) {
		// clean session: le sottoscrizioni si perdono ad ogni riconnessione
		if c := consumer.Load(); c != nil {
			if err := c.Subscribe(); err != nil {
				lg.Error("resubscribe failed", "error", err)
			}
		}
	}
	client, err := rabbitmq.NewRabbitMQConn(ctx, &conn)
	if err != nil {
		log.Fatalf("mqtt connection error: %v", err)
	}
	defer rabbitmq.CloseRabbitMQConn(client)

	publisher := rabbitmq.NewPublisher(client, topics.State(), byte(cfg.QoS), true)
	installation := simulator.NewInstallation(topics, publisher, gen, table)
	sub := rabbitmq.NewConsumer(client, topics.SetAll(), byte(cfg.QoS), installation.HandleMessage)
	consumer.Store(sub)

	go func() {
		if err := sub.ConsumeMessage(ctx); err != nil {
			lg.Error("consumer stopped", "error", err)
			stop()
		}
	}()

	bill := entities.Unavailable
	if *prevBill >= 0 {
		bill = entities.Available(*prevBill)
	}
	lg.Info("installation simulator started", "prefix", *prefix, "interval", interval.String())
	installation.Start(ctx, *interval, bill)
	lg.Info("installation simulator stopped")
}
