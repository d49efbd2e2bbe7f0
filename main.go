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

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/api"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/cache"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/config"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/db"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/email"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/notify"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/services"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/storage"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

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

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	// Email sender: mock services route delivery through Redis so the test
	// harness can fetch sent mail; otherwise SMTP when configured.
	var primaryEmailSender email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg)
	} else {
		primaryEmailSender = email.NewSMTPSender(cfg)
	}

	compositeSender := email.NewCompositeSender(primaryEmailSender)

	logEmailsPath := os.Getenv("LOG_EMAILS")
	if logEmailsPath != "" {
		fileSender, err := email.NewFileSender(logEmailsPath)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS=%q): %v. Proceeding without file logging.", logEmailsPath, err)
		} else {
			compositeSender.AddSender(fileSender)
			log.Printf("LOG_EMAILS set to %q, file email logger enabled.", logEmailsPath)
		}
	}

	finalEmailSender := email.Sender(compositeSender)

	// Services
	configSvc := services.NewConfigService(mongoDb, cfg, redisClient)
	userService := services.NewUserService(mongoDb)
	templateService := services.NewEmailTemplateService(mongoDb)
	triggerService := services.NewEmailTriggerService(mongoDb, templateService)
	evidenceService := services.NewEvidenceService(mongoDb)
	commentService := services.NewCommentService(mongoDb)
	claimService := services.NewClaimService(mongoDb)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := templateService.EnsureBuiltinTemplates(startupCtx); err != nil {
		log.Printf("WARNING: Failed to seed builtin email templates: %v", err)
	}
	cancelStartup()

	// Notification pipeline
	resolver := notify.NewResolver(userService)
	dispatcher := notify.NewDispatcher(triggerService, templateService, resolver, finalEmailSender, configSvc)

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	dispatcher.SetDelayedEnqueuer(tasks.NewEnqueuer(taskClient))

	var wg sync.WaitGroup

	shutdownChan := make(chan struct{}, 1)

	// Service API (always runs)
	serviceRouter := api.SetupServiceRouter(cfg, redisClient, shutdownChan)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: serviceRouter,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("Service API listening on :%s\n", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
	}()

	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		mainApiRouter := api.SetupRouter(api.Deps{
			Cfg:             cfg,
			DB:              mongoDb,
			RDB:             redisClient,
			ConfigService:   configSvc,
			UserService:     userService,
			TemplateService: templateService,
			TriggerService:  triggerService,
			EvidenceService: evidenceService,
			CommentService:  commentService,
			ClaimService:    claimService,
			Dispatcher:      dispatcher,
			Enqueuer:        tasks.NewEnqueuer(taskClient),
		})
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: mainApiRouter,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
		}()
	}

	bgMode := func() {
		s3StorageService, err := storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage for worker: %v", err)
		}
		taskProcessor := tasks.NewTaskProcessor(cfg, dispatcher, s3StorageService, evidenceService)
		backgroundTaskSrv = tasks.SetupServer(redisClient)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Println("Background task server starting...")
			if err := backgroundTaskSrv.Run(tasks.SetupMux(taskProcessor)); err != nil {
				log.Fatalf("Background task server error: %v", err)
			}
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	// Graceful shutdown
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
	if backgroundTaskSrv != nil {
		backgroundTaskSrv.Shutdown()
	}

	wg.Wait()
	fmt.Println("Server gracefully stopped")
}
