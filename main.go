package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/zsleinadg/WebCarros/internal/api"
	"github.com/zsleinadg/WebCarros/internal/cache"
	"github.com/zsleinadg/WebCarros/internal/config"
	"github.com/zsleinadg/WebCarros/internal/db"
	"github.com/zsleinadg/WebCarros/internal/email"
	"github.com/zsleinadg/WebCarros/internal/services"
	"github.com/zsleinadg/WebCarros/internal/storage"
	"github.com/zsleinadg/WebCarros/internal/tasks"

	"github.com/redis/go-redis/v9"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all' (default)")

// buildEmailSender assembles the delivery chain: Redis capture under
// MOCK_SERVICES, SMTP otherwise, plus an optional file log via
// LOG_EMAILS.
func buildEmailSender(cfg *config.Config, redisClient *redis.Client) email.Sender {
	var primary email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primary = email.NewRedisSender(redisClient, cfg)
	} else {
		log.Println("MOCK_SERVICES disabled or not set: Using SMTP/Logging email sender.")
		primary = email.NewSMTPSender(cfg)
	}

	composite := email.NewCompositeEmailSender(primary)
	if logPath := os.Getenv("LOG_EMAILS"); logPath != "" {
		log.Printf("LOG_EMAILS set to '%s', enabling file email logger.", logPath)
		fileSender, err := email.NewFileEmailSender(logPath, cfg)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", logPath, err)
		} else {
			composite.AddSender(fileSender)
		}
	}
	return composite
}

// serveHTTP runs srv in a goroutine tracked by wg.
func serveHTTP(wg *sync.WaitGroup, name string, srv *http.Server) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("%s listening on %s\n", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("%s ListenAndServe error: %v", name, err)
		}
		fmt.Printf("%s stopped.\n", name)
	}()
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	if err := db.EnsureIndexes(context.Background(), mongoDb); err != nil {
		log.Fatalf("Failed to ensure database indexes: %v", err)
	}

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	emailSender := buildEmailSender(cfg, redisClient)

	// Services shared between the API and the task processor. The config
	// service loads its cache and starts its Pub/Sub listener itself.
	configSvc := services.NewConfigService(mongoDb, cfg, redisClient)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize S3 storage: %v", err)
	}
	carService := services.NewCarService(mongoDb, cfg, s3StorageService)
	emailTemplateService := services.NewEmailTemplateService(mongoDb)

	// Task plumbing
	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	imageEnqueuer := tasks.NewImageEnqueuer(taskClient)
	emailEnqueuer := tasks.NewEmailEnqueuer(taskClient)

	taskProcessor := tasks.NewTaskProcessor(cfg, emailSender, s3StorageService, carService, configSvc, emailTemplateService, taskClient)

	var wg sync.WaitGroup

	// The service API runs in every mode: it exposes shutdown and the
	// test-only email lookup.
	shutdownChan := make(chan struct{}, 1)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, redisClient, shutdownChan),
	}
	serveHTTP(&wg, "Service API", serviceSrv)

	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server
	var imageTaskSrv *asynq.Server
	var scheduler *asynq.Scheduler

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: api.SetupRouter(cfg, mongoDb, redisClient, emailEnqueuer, imageEnqueuer, configSvc),
		}
		serveHTTP(&wg, "Main API", mainApiSrv)
	}

	bgMode := func() {
		fmt.Println("Starting background worker...")
		backgroundTaskSrv = tasks.SetupServer(redisClient, taskProcessor, false, true)

		var err error
		scheduler, err = tasks.SetupScheduler(redisClient)
		if err != nil {
			log.Fatalf("Failed to set up task scheduler: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start task scheduler: %v", err)
		}
		fmt.Println("Task scheduler started.")
	}

	imgMode := func() {
		fmt.Println("Starting image processing worker...")
		imageTaskSrv = tasks.SetupServer(redisClient, taskProcessor, true, false)
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "img":
		imgMode()
	case "all":
		apiMode()
		bgMode()
		imgMode()
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if backgroundTaskSrv != nil {
		backgroundTaskSrv.Shutdown()
	}
	if imageTaskSrv != nil {
		imageTaskSrv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}
