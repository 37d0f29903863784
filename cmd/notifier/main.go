package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"roomcal/internal/bookings/service"
	"roomcal/pkg/config"
	"roomcal/pkg/kafka"
	kafka_config "roomcal/pkg/kafka/config"
	kafka_middleware "roomcal/pkg/kafka/middleware"
)

const (
	ServiceName   = "notifier"
	consumerGroup = "roomcal-notifier"
)

// The notifier tails booking.created events and emits notification log
// lines. It is the consuming end of the bookings service's event stream.
func main() {
	cfg := config.Load(ServiceName)

	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.BookingEventTopic,
		consumerGroup,
		cfg.BookingEventTopic+".dlq",
		handleBookingCreated(cfg),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))

	ctx, cancel := context.WithCancel(context.Background())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		cfg.Log.Info("Shutdown signal received", "signal", sig)
		cancel()
	}()

	cfg.Log.Info("Notifier consuming booking events", "topic", cfg.BookingEventTopic)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	cfg.Log.Info("Notifier stopped")
}

func handleBookingCreated(cfg *config.Config) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event service.BookingCreatedEvent
		if err := msg.DecodeValue(&event); err != nil {
			return kafka.NewPermanentError("failed to decode booking event", err)
		}

		cfg.Log.Info("Booking confirmed",
			"id", event.ID,
			"user_name", event.UserName,
			"start_time", event.StartTime,
			"end_time", event.EndTime,
		)
		return nil
	}
}
