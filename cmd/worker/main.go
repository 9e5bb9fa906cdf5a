/**
 * Screening Worker - Main Entry Point
 *
 * Go worker that screens submitted image batches for evidence of a person's
 * name, for awarding participation credit.
 *
 * Pipeline per job:
 * - Perceptual-hash deduplication of near-identical submissions
 * - OCR over the unique set (Tesseract by default)
 * - Fuzzy name reconciliation against the target name
 * - Evidence highlighting and matched/unmatched partitioning
 * - Result archive upload + PostgreSQL job status persistence
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/creditscan/screening-worker/internal/annotate"
	"github.com/creditscan/screening-worker/internal/clients"
	"github.com/creditscan/screening-worker/internal/config"
	"github.com/creditscan/screening-worker/internal/ocr"
	"github.com/creditscan/screening-worker/internal/pipeline"
	"github.com/creditscan/screening-worker/internal/queue"
	"github.com/creditscan/screening-worker/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Screening Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, PostgreSQL=%s, Workers=%d, Lang=%s",
		cfg.RedisURL, cfg.DatabaseURL, cfg.WorkerConcurrency, cfg.OCRLanguage)

	log.Printf("Connecting to PostgreSQL...")
	store, err := storage.NewPostgresClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Printf("Storage initialized")

	ocrOptions := ocr.Options{
		Language:            cfg.OCRLanguage,
		UseAccelerator:      cfg.UseAccelerator,
		DeviceIndex:         cfg.DeviceIndex,
		DetLimitSideLen:     cfg.DetLimitSideLen,
		AngleClassification: cfg.AngleClassification,
	}

	// Engine initialization failures are fatal for the whole run.
	log.Printf("Initializing OCR engine...")
	engine, err := ocr.NewTesseractEngine(ocrOptions)
	if err != nil {
		log.Fatalf("Failed to initialize OCR engine: %v", err)
	}
	defer engine.Close()
	log.Printf("OCR engine initialized: %s", engine.Name())

	progress, err := queue.NewProgressPublisher(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to initialize progress publisher: %v", err)
	}
	defer progress.Close()

	orchestrator, err := pipeline.NewOrchestrator(&pipeline.OrchestratorConfig{
		Engine:                     engine,
		Annotator:                  annotate.NewAnnotator(),
		Concurrency:                cfg.WorkerConcurrency,
		OCROptions:                 ocrOptions,
		DefaultSimilarityThreshold: cfg.SimilarityThreshold,
		DefaultNameMatchThreshold:  cfg.NameMatchThreshold,
		OnProgress: func(jobID, stage string, done, total int) {
			progress.Publish(context.Background(), jobID, stage, done, total)
		},
	})
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	log.Printf("Pipeline initialized")

	artifacts := clients.NewArtifactClient(cfg.ArtifactAPIURL)

	log.Printf("Connecting to Redis queue...")
	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Orchestrator:      orchestrator,
		Store:             store,
		Artifacts:         artifacts,
		Progress:          progress,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	log.Printf("===========================================")
	log.Printf("Screening Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s", cfg.QueueName)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Similarity threshold: %d", cfg.SimilarityThreshold)
	log.Printf("Name match threshold: %d", cfg.NameMatchThreshold)
	log.Printf("OCR language: %s", cfg.OCRLanguage)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	if err := consumer.Stop(ctx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	if err := store.Close(); err != nil {
		log.Printf("Error closing storage: %v", err)
	} else {
		log.Printf("Storage closed")
	}

	log.Printf("Shutdown complete")
}
