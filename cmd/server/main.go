package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/ordertrack/ordertrack/internal/api"
	"github.com/ordertrack/ordertrack/internal/config"
	"github.com/ordertrack/ordertrack/internal/kvstore"
	"github.com/ordertrack/ordertrack/internal/messaging"
	"github.com/ordertrack/ordertrack/internal/telemetry"
	"github.com/ordertrack/ordertrack/internal/tracker"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "ordertrack", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("ordertrack", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime metrics", "error", err)
		os.Exit(1)
	}

	kv, err := openKV(cfg, logger)
	if err != nil {
		logger.Error("failed to open storage backend", "error", err, "backend", cfg.StorageBackend)
		os.Exit(1)
	}

	var producer *messaging.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = messaging.NewProducer(cfg.KafkaBrokers, "order.status")
		defer func() { _ = producer.Close() }()
	}

	store := tracker.NewStore(kv, logger)
	store.BindFromSession(ctx)

	handler, err := api.NewHandler(store, kv, producer, logger)
	if err != nil {
		logger.Error("failed to create api handler", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", telemetry.WithHTTPRoute(handler.HandleStartSession))
	mux.HandleFunc("DELETE /session", telemetry.WithHTTPRoute(handler.HandleEndSession))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(handler.HandleCreate))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("GET /orders/summary", telemetry.WithHTTPRoute(handler.HandleSummary))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.HandleFunc("POST /orders/{id}/pick", telemetry.WithHTTPRoute(handler.HandlePick))
	mux.HandleFunc("POST /orders/{id}/expire", telemetry.WithHTTPRoute(handler.HandleExpire))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(handler.HandleDelete))
	mux.HandleFunc("DELETE /orders", telemetry.WithHTTPRoute(handler.HandleClearAll))
	mux.HandleFunc("POST /orders/reload", telemetry.WithHTTPRoute(handler.HandleReload))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "ordertrack",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting ordertrack server", "port", cfg.Port, "backend", cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func openKV(cfg config.Config, logger *slog.Logger) (kvstore.KV, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory storage, orders will not survive a restart")
		return kvstore.NewMemory(), nil

	case config.BackendPostgres:
		db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			return nil, err
		}
		return kvstore.NewPostgres(db), nil

	default:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, err
		}
		return kvstore.NewRedis(client), nil
	}
}
