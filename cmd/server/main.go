package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/maneesh/filevault/internal/auth"
	"github.com/maneesh/filevault/internal/config"
	"github.com/maneesh/filevault/internal/files"
	"github.com/maneesh/filevault/internal/handlers"
	"github.com/maneesh/filevault/internal/queue"
	"github.com/maneesh/filevault/internal/storage"
	"github.com/maneesh/filevault/internal/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	log.Println("Starting filevault API service...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Service: %s, Port: %s", cfg.ServiceName, cfg.ServicePort)

	// Initialize OpenTelemetry tracing
	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName, cfg.JaegerEndpoint)
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

	// Initialize MinIO client (content store)
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
	log.Println("MinIO client initialized")

	// Initialize MySQL client (metadata store)
	log.Println("Connecting to MySQL...")
	mysqlClient, err := storage.NewMySQLClient(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to initialize MySQL client: %v", err)
	}
	defer mysqlClient.Close()
	if err := mysqlClient.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("MySQL client initialized")

	// Initialize Redis client (sessions + job queue)
	log.Println("Connecting to Redis...")
	redisClient, err := storage.NewRedisClient(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to initialize Redis client: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis client initialized")

	// Wire up the core components
	jobQueue := queue.NewRedisQueue(redisClient)
	sessions := auth.NewSessionManager(redisClient)
	access := auth.NewAccessControl(sessions, mysqlClient)
	repo := files.NewRepository(mysqlClient, minioClient)
	pipeline := files.NewUploadPipeline(repo, jobQueue)

	appHandler := handlers.NewAppHandler(redisClient, mysqlClient)
	usersHandler := handlers.NewUsersHandler(mysqlClient, jobQueue, access)
	authHandler := handlers.NewAuthHandler(mysqlClient, sessions)
	filesHandler := handlers.NewFilesHandler(repo, pipeline, access)

	// Setup HTTP router
	router := mux.NewRouter()

	route := func(path, method, name string, h http.HandlerFunc) {
		router.Handle(path, otelhttp.NewHandler(h, name)).Methods(method)
	}

	route("/status", "GET", "GET /status", appHandler.Status)
	route("/stats", "GET", "GET /stats", appHandler.Stats)
	route("/users", "POST", "POST /users", usersHandler.Register)
	route("/users/me", "GET", "GET /users/me", usersHandler.Me)
	route("/connect", "GET", "GET /connect", authHandler.Connect)
	route("/disconnect", "GET", "GET /disconnect", authHandler.Disconnect)
	route("/files", "POST", "POST /files", filesHandler.Upload)
	route("/files", "GET", "GET /files", filesHandler.Index)
	route("/files/{id}", "GET", "GET /files/{id}", filesHandler.Show)
	route("/files/{id}/publish", "PUT", "PUT /files/{id}/publish", filesHandler.Publish)
	route("/files/{id}/unpublish", "PUT", "PUT /files/{id}/unpublish", filesHandler.Unpublish)
	route("/files/{id}/data", "GET", "GET /files/{id}/data", filesHandler.Data)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on port %s", cfg.ServicePort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
