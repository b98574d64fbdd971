package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/example/wa-storefront/internal/config"
	"github.com/example/wa-storefront/internal/infrastructure/kafka"
	"github.com/example/wa-storefront/internal/infrastructure/store"
	"github.com/example/wa-storefront/internal/projection"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	consumerGroup := "tracking-projector"

	log.Println("[Projector] ========================================")
	log.Println("[Projector] Conversion Event Projector")
	log.Println("[Projector] ========================================")
	log.Printf("[Projector] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[Projector] Topic: %s", cfg.TrackingTopic)
	log.Printf("[Projector] Group: %s", consumerGroup)

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Projector] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	if err := store.EnsureSchema(db); err != nil {
		log.Fatalf("[Projector] Failed to ensure schema: %v", err)
	}
	log.Println("[Projector] Connected to PostgreSQL")

	projector := projection.NewProjector(store.NewTrackingStore(db))

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.TrackingTopic, consumerGroup)
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("[Projector] Starting event consumer...")
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil {
			if ctx.Err() == nil {
				log.Printf("[Projector] Consumer error: %v", err)
			}
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Projector] Shutting down...")
	cancel()
	wg.Wait()
}
