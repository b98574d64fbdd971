package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/example/wa-storefront/internal/api"
	"github.com/example/wa-storefront/internal/auth"
	"github.com/example/wa-storefront/internal/checkout"
	"github.com/example/wa-storefront/internal/config"
	"github.com/example/wa-storefront/internal/domain/cart"
	"github.com/example/wa-storefront/internal/infrastructure/kafka"
	"github.com/example/wa-storefront/internal/infrastructure/store"
	"github.com/example/wa-storefront/internal/meta"
	"github.com/example/wa-storefront/internal/payments"
	"github.com/example/wa-storefront/internal/pixel"
	"github.com/example/wa-storefront/internal/tracking"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("[API] JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[API] JWT_SECRET must be at least 32 characters long")
	}

	log.Println("[API] ========================================")
	log.Println("[API] WhatsApp Storefront")
	log.Println("[API] ========================================")
	log.Printf("[API] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[API] Tracking topic: %s", cfg.TrackingTopic)
	log.Printf("[API] Order topic: %s", cfg.OrderTopic)
	log.Printf("[API] Cart backend: %s", cfg.CartBackend)
	if cfg.FBPixelID == "" || cfg.FBAccessToken == "" {
		log.Println("[API] Meta tracking disabled (FB_PIXEL_ID / FB_ACCESS_TOKEN not set)")
	} else {
		log.Printf("[API] Meta tracking enabled for pixel %s", cfg.FBPixelID)
	}

	// PostgreSQL
	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	if err := store.EnsureSchema(db); err != nil {
		log.Fatalf("[API] Failed to ensure schema: %v", err)
	}
	log.Println("[API] Connected to PostgreSQL")

	// Kafka producers: one stream for conversions, one for order events
	trackingProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.TrackingTopic)
	defer trackingProducer.Close()
	orderProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.OrderTopic)
	defer orderProducer.Close()

	// Conversion tracking: server channel (CAPI) + browser channel (pixel queue)
	dispatcher := meta.NewDispatcher(meta.Config{
		PixelID:       cfg.FBPixelID,
		AccessToken:   cfg.FBAccessToken,
		TestEventCode: cfg.FBTestEventCode,
	})
	hub := pixel.NewHub()
	tracker := tracking.NewTracker(dispatcher, hub, trackingProducer)

	// Cart storage
	var cartStore cart.Store
	if cfg.CartBackend == "dynamo" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("[API] Failed to load AWS config: %v", err)
		}
		cartStore = store.NewDynamoCartStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoCartsTable)
		log.Printf("[API] Carts: DynamoDB table %s", cfg.DynamoCartsTable)
	} else {
		cartStore = store.NewPostgresCartStore(db)
		log.Println("[API] Carts: PostgreSQL")
	}
	cartSvc := cart.NewService(cartStore)

	// Stores
	productStore := store.NewProductStore(db)
	orderStore := store.NewOrderStore(db)
	userStore := store.NewUserStore(db)
	trackingStore := store.NewTrackingStore(db)

	// Payments (optional)
	var paymentClient checkout.PreferenceCreator
	if cfg.MPAccessToken != "" {
		paymentClient = payments.NewClient(cfg.MPAccessToken, "")
		log.Println("[API] Mercado Pago enabled")
	}

	checkoutSvc := checkout.NewService(cartSvc, orderStore, paymentClient, tracker, orderProducer, cfg.ShopWhatsAppPhone)

	jwtService := auth.NewJWTService(
		cfg.JWTSecret,
		15*time.Minute,
		7*24*time.Hour,
	)

	handlers := api.NewHandlers(productStore, cartSvc, orderStore, checkoutSvc, trackingStore, hub)
	trackingHandlers := api.NewTrackingHandlers(tracker)
	authHandlers := api.NewAuthHandlers(userStore, jwtService, tracker)
	router := api.NewRouter(handlers, trackingHandlers, authHandlers, jwtService, cfg.WebDir)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}
