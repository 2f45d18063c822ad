/**
 * Receipt OCR API Server - Main Entry Point
 *
 * HTTP front for the extraction pipeline: synchronous processing for
 * interactive uploads, enqueueing to the background worker for the rest.
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

	"github.com/receiptflow/receipt-worker/internal/api"
	"github.com/receiptflow/receipt-worker/internal/config"
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

	log.Printf("Receipt OCR API server starting...")

	recognizer := ocr.NewTesseract(cfg.TesseractLang)
	processor := pipeline.NewProcessor(recognizer)

	enqueuer, err := queue.NewEnqueuer(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("Failed to initialize queue client: %v", err)
	}
	defer enqueuer.Close()

	tracker, err := queue.NewStatusTracker(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		log.Fatalf("Failed to initialize status tracker: %v", err)
	}
	defer tracker.Close()

	serverCfg := &api.ServerConfig{
		Addr:        cfg.HTTPAddr,
		MaxFileSize: cfg.MaxFileSize,
		Enhance:     cfg.EnhanceQuality,
		Extractor:   processor,
		Enqueuer:    enqueuer,
		Tracker:     tracker,
		OCRReady: func(ctx context.Context) bool {
			return recognizer.Available()
		},
	}

	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL store: %v", err)
		}
		defer store.Close()
		serverCfg.DBReady = func(ctx context.Context) bool {
			return store.Ping(ctx) == nil
		}
	}

	server := api.NewServer(serverCfg)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Printf("Shutdown complete")
}
