package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"stashpad/cloudstore"
	"stashpad/config"
	"stashpad/extraction"
	"stashpad/integrity"
	"stashpad/pipeline"
	"stashpad/queue"
	"stashpad/snapshots"
	"stashpad/storage"
)

// Standalone snapshot worker: consumes queued jobs from Kafka without
// serving the HTTP API. Lets render-heavy work scale separately from the
// request path.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required for the standalone worker")
	}

	cipher, err := storage.NewTokenCipher(cfg.TokenCipherKey)
	if err != nil {
		log.Fatalf("token cipher: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	store := storage.NewStoreWithClient(rdb, cipher)
	defer store.Close()

	sessions := &snapshots.ChromeFactory{WSURL: cfg.ChromeWSURL}
	runner := pipeline.NewRunner(
		store,
		extraction.NewExtractor(),
		snapshots.NewGenerator(),
		cloudstore.NewDispatcher(cfg),
		integrity.NewVerifier(),
	)

	handler := pipeline.NewSnapshotJobHandler(runner, sessions)
	worker, err := queue.NewKafkaWorker(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, handler)
	if err != nil {
		log.Fatalf("kafka consumer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.Start(ctx); err != nil {
		log.Fatalf("kafka worker: %v", err)
	}

	<-ctx.Done()
	log.Println("shutting down")
	if err := worker.Close(); err != nil {
		log.Printf("consumer close: %v", err)
	}
}
