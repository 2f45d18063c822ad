/**
 * Receipt OCR Worker - Main Entry Point
 *
 * Background worker for receipt extraction.
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed job queue
 * - Preprocessing variants + Tesseract recognition ensemble
 * - Heuristic field extraction with per-field confidence scoring
 * - PostgreSQL persistence, Redis status mirroring for API consumers
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/receiptflow/receipt-worker/internal/config"
	"github.com/receiptflow/receipt-worker/internal/input"
	"github.com/receiptflow/receipt-worker/internal/ocr"
	"github.com/receiptflow/receipt-worker/internal/pipeline"
	"github.com/receiptflow/receipt-worker/internal/queue"
	"github.com/receiptflow/receipt-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Receipt OCR Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Queue=%s, Workers=%d, Timeout=%v",
		cfg.RedisURL, cfg.QueueName, cfg.WorkerConcurrency, cfg.ProcessingTimeout)

	recognizer := ocr.NewTesseract(cfg.TesseractLang)
	if !recognizer.Available() {
		log.Fatalf("Tesseract runtime is not available (language=%s)", cfg.TesseractLang)
	}
	log.Printf("Tesseract runtime available (language=%s)", cfg.TesseractLang)

	processor := pipeline.NewProcessor(recognizer)

	var store *storage.PostgresStore
	if cfg.DatabaseURL != "" {
		log.Printf("Connecting to PostgreSQL...")
		var err error
		store, err = storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL store: %v", err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := store.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to ensure database schema: %v", err)
		}
		cancel()
		log.Printf("PostgreSQL store initialized")
	} else {
		log.Printf("DATABASE_URL not set, persistence disabled")
	}

	tracker, err := queue.NewStatusTracker(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("Failed to initialize status tracker: %v", err)
	}
	defer tracker.Close()

	consumerCfg := &queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		ProcessingTimeout: cfg.ProcessingTimeout,
		Extractor:         processor,
		Fetcher:           input.NewHTTPFetcher(60*time.Second, cfg.MaxFileSize),
		Tracker:           tracker,
	}
	if store != nil {
		consumerCfg.Store = store
	}

	consumer, err := queue.NewConsumer(consumerCfg)
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}
	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("===========================================")
	log.Printf("Receipt OCR Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s", cfg.QueueName)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Enhanced preprocessing: %v", cfg.EnhanceQuality)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	consumer.Stop()
	log.Printf("Shutdown complete")
}
