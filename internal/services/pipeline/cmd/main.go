package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/sems_project/internal/config"
	"github.com/LeonardoBeccarini/sems_project/internal/logging"
	"github.com/LeonardoBeccarini/sems_project/internal/model/entities"
	"github.com/LeonardoBeccarini/sems_project/internal/model/messages"
	"github.com/LeonardoBeccarini/sems_project/internal/services/billing"
	"github.com/LeonardoBeccarini/sems_project/internal/services/cache"
	"github.com/LeonardoBeccarini/sems_project/internal/services/control"
	"github.com/LeonardoBeccarini/sems_project/internal/services/derive"
	"github.com/LeonardoBeccarini/sems_project/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/sems_project/internal/services/history"
	"github.com/LeonardoBeccarini/sems_project/internal/services/pipeline"
	"github.com/LeonardoBeccarini/sems_project/internal/transport"
)

func main() {
	lg, logFile := logging.Init("pipeline")
	if logFile != nil {
		defer logFile.Close()
	}

	// === Config ===
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	table, tariffName, err := billing.LoadRateTable(cfg.TariffFile)
	if err != nil {
		log.Fatalf("tariff: %v", err)
	}
	calc, err := derive.NewCalculator(cfg.Derive)
	if err != nil {
		log.Fatalf("derive params: %v", err)
	}
	lg.Info("starting", "transport", cfg.Transport, "tariff", tariffName, "tier_boundaries_kwh", table.Boundaries())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Transport ===
	var store transport.Store
	switch cfg.Transport {
	case config.TransportMemory:
		store = transport.NewMemoryStore(messages.Snapshot{
			messages.KeyMode:        string(entities.ModeAI),
			messages.KeyFanManual:   "OFF",
			messages.KeyLightManual: "OFF",
		})
	default:
		ms, err := transport.NewMQTTStore(ctx, transport.MQTTConfig{
			Conn:            cfg.Rabbit,
			Topics:          transport.Topics{Prefix: cfg.Prefix},
			QoS:             byte(cfg.QoS),
			BreakerFails:    cfg.BreakerFails,
			BreakerOpen:     cfg.BreakerOpen,
			BreakerInterval: cfg.BreakerInterval,
		}, lg)
		if err != nil {
			log.Fatalf("mqtt connection error: %v", err)
		}
		defer ms.Close()
		store = ms
	}

	reconciler := control.NewReconciler(store,
		control.WithWriteTimeout(cfg.WriteTimeout),
		control.WithLogger(lg.With("component", "control")))

	// === Sinks ===
	healthSrv := health.NewServer()
	sinks := []pipeline.Sink{pipeline.NewHealthReporter(healthSrv)}
	checks := map[string]func(context.Context) error{}
	opts := []pipeline.Option{pipeline.WithLogger(lg.With("component", "pipeline"))}

	var historyHandler http.Handler
	if cfg.InfluxURL != "" {
		influx := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
			influxdb2.DefaultOptions().SetBatchSize(20).SetFlushInterval(1000))
		defer influx.Close()
		writer := history.NewWriter(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket))
		defer writer.Flush()
		sinks = append(sinks, writer)
		historyHandler = history.NewHistoryHandler(influx, cfg.InfluxOrg, cfg.InfluxBucket)
		checks["influx"] = func(ctx context.Context) error {
			if ok, err := influx.Ping(ctx); err != nil || !ok {
				return fmt.Errorf("influx ping failed: %v", err)
			}
			if age := writer.LastErrorAge(); age < 30*time.Second {
				return fmt.Errorf("write error %s ago", age.Round(time.Second))
			}
			return nil
		}
	}

	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		})
		if err != nil {
			// the cache only warms restarts; run without it
			lg.Warn("redis unavailable, continuing without cache", "error", err)
		} else {
			defer rc.Close()
			sinks = append(sinks, rc)
			opts = append(opts, pipeline.WithPreviousBillStore(rc))
			checks["redis"] = rc.Ping
		}
	}
	opts = append(opts, pipeline.WithSinks(sinks...))

	p := pipeline.New(store, pipeline.Builder{Calc: calc, Table: table}, reconciler, opts...)

	// === HTTP ===
	gw := app.NewGateway(app.Config{
		History: historyHandler,
		Metrics: promhttp.Handler(),
		Checks:  checks,
		Logger:  lg.With("component", "gateway"),
	}, p, reconciler)
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, gw.Router())),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		lg.Info("http listening", "addr", hs.Addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// === gRPC health ===
	var gs *grpc.Server
	if cfg.GRPCPort > 0 {
		lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		gs = grpc.NewServer()
		healthpb.RegisterHealthServer(gs, healthSrv)
		go func() {
			lg.Info("grpc health listening", "addr", lis.Addr().String())
			if err := gs.Serve(lis); err != nil {
				lg.Error("grpc server stopped", "error", err)
			}
		}()
	}

	// === Pipeline ===
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-ctx.Done()
	lg.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
	if gs != nil {
		healthSrv.Shutdown()
		gs.GracefulStop()
	}
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("pipeline stopped", "error", err)
		}
	case <-shCtx.Done():
		lg.Warn("pipeline did not stop in time")
	}
}
