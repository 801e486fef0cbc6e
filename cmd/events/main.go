package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joao-fontenele/greeneye-shop/internal/config"
	"github.com/joao-fontenele/greeneye-shop/internal/domain"
	"github.com/joao-fontenele/greeneye-shop/internal/messaging"
	"github.com/joao-fontenele/greeneye-shop/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, telemetry.Resource("greeneye-events", "0.1.0"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.CheckoutEventsTopic, "checkout-events-tail", logger)
	defer func() { _ = consumer.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("tailing checkout events", "brokers", cfg.KafkaBrokers, "topic", cfg.CheckoutEventsTopic)

	err = consumer.Consume(ctx, func(ctx context.Context, event domain.CheckoutEvent) error {
		logger.InfoContext(ctx, "checkout event",
			"type", event.Type,
			"order_id", event.OrderID,
			"payment_method", event.PaymentMethod,
			"total", event.Total,
			"items", len(event.Items),
			"message", event.Message,
			"at", event.Timestamp,
		)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
