package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"stashpad/api"
	"stashpad/batch"
	"stashpad/cloudstore"
	"stashpad/common"
	"stashpad/config"
	"stashpad/extraction"
	"stashpad/integrity"
	"stashpad/pipeline"
	"stashpad/queue"
	"stashpad/rssimport"
	"stashpad/snapshots"
	"stashpad/storage"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()
	cfg := config.FromEnv()

	cipher, err := storage.NewTokenCipher(cfg.TokenCipherKey)
	if err != nil {
		log.Fatalf("token cipher: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("redis connection failed: %v", err)
	}
	cancel()
	store := storage.NewStoreWithClient(rdb, cipher)
	defer store.Close()

	blobs, err := common.NewBlobStore(context.Background(), common.BlobStoreConfig{
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		Prefix:       cfg.S3Prefix,
		UsePathStyle: cfg.S3UsePathStyle,
	})
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	sessions := &snapshots.ChromeFactory{WSURL: cfg.ChromeWSURL}
	runner := pipeline.NewRunner(
		store,
		extraction.NewExtractor(),
		snapshots.NewGenerator(),
		cloudstore.NewDispatcher(cfg),
		integrity.NewVerifier(),
	)
	coordinator := batch.NewCoordinator(runner, sessions)
	previews := snapshots.NewPreviewStore(rdb, blobs)
	importer := rssimport.NewImporter(runner)

	jobs := startSnapshotWorker(cfg, runner, sessions)

	server := api.NewServer(runner, coordinator, previews, sessions, importer, jobs)
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s", addr)
	if err := http.ListenAndServe(addr, server.NewRouter()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// startSnapshotWorker wires the fire-and-forget snapshot path. With Kafka
// brokers configured the queue is durable; otherwise jobs run on an
// in-process channel worker.
func startSnapshotWorker(cfg config.Config, runner *pipeline.Runner, sessions snapshots.SessionFactory) queue.Queue {
	handler := pipeline.NewSnapshotJobHandler(runner, sessions)

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := queue.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		worker, err := queue.NewKafkaWorker(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, handler)
		if err != nil {
			log.Fatalf("kafka consumer: %v", err)
		}
		if err := worker.Start(context.Background()); err != nil {
			log.Fatalf("kafka worker: %v", err)
		}
		return producer
	}

	log.Printf("KAFKA_BROKERS not set; using in-process snapshot queue")
	mq := queue.NewMemoryQueue(64, handler)
	mq.Start(context.Background())
	return mq
}
