package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"presence/internal/cleanup"
	"presence/internal/config"
	"presence/internal/faceclient"
	"presence/internal/photostore"
	"presence/internal/queue"
	"presence/internal/store"
)

// Worker consumes cleanup tasks from Redis: face template and photo removals
// that follow a person's deletion or a replaced photo.
func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		log.Fatal("QUEUE_BACKEND=memory runs cleanup inside the api process; nothing to do")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis at %s not reachable yet, will keep retrying", cfg.RedisAddr)
	}

	// Disk photos are only removable when STORAGE_DIR points at the api's storage.
	photos, err := photostore.Open(cfg.PhotoBackend, cfg.StorageDir, cfg.BaseURL, cfg.CloudinaryURL, cfg.CloudinaryFolder)
	if err != nil {
		log.Fatalf("photo store: %v", err)
	}
	faces := faceclient.New(cfg.FaceServiceURL, cfg.FaceTimeout)
	q := queue.NewRedisQueue(redisClient.Client, "")

	log.Println("worker started, waiting for cleanup tasks...")
	if err := cleanup.NewWorker(faces, photos).Run(ctx, q); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
	log.Println("worker stopped")
}
