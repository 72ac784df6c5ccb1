package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/maneesh/filevault/internal/config"
	"github.com/maneesh/filevault/internal/queue"
	"github.com/maneesh/filevault/internal/storage"
	"github.com/maneesh/filevault/internal/tracing"
	"github.com/maneesh/filevault/internal/workers"
)

func main() {
	log.Println("Starting filevault worker...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName+"-worker", cfg.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// Initialize MinIO client (originals in, derivatives out)
	log.Println("Connecting to MinIO...")
	minioClient, err := storage.NewMinioClient(
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucketName,
		cfg.MinIOUseSSL,
	)
	if err != nil {
		log.Fatalf("Failed to initialize MinIO client: %v", err)
	}

	// Initialize MySQL client (metadata lookups)
	log.Println("Connecting to MySQL...")
	mysqlClient, err := storage.NewMySQLClient(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to initialize MySQL client: %v", err)
	}
	defer mysqlClient.Close()

	// Initialize Redis client (job queue)
	log.Println("Connecting to Redis...")
	redisClient, err := storage.NewRedisClient(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to initialize Redis client: %v", err)
	}
	defer redisClient.Close()

	jobQueue := queue.NewRedisQueue(redisClient)
	thumbnails := workers.NewThumbnailWorker(mysqlClient, minioClient)
	welcome := workers.NewWelcomeWorker(mysqlClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One consumer goroutine per topic; each processes its jobs one at a
	// time. Scaling out means running more worker processes.
	var wg sync.WaitGroup

	consume := func(topic string, handler queue.Handler) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := jobQueue.Consume(ctx, topic, handler); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Consumer for topic %q stopped: %v", topic, err)
			}
		}()
	}

	consume(queue.TopicThumbnails, thumbnails.Process)
	consume(queue.TopicWelcome, welcome.Process)

	<-ctx.Done()
	log.Println("Shutting down worker...")
	wg.Wait()
	log.Println("Worker exited")
}
