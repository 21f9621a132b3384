package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"promptsync/internal/config"
	"promptsync/internal/database"
	"promptsync/internal/handlers"
	"promptsync/internal/loader"
	"promptsync/internal/logging"
	"promptsync/internal/middleware"
	"promptsync/internal/services"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting PromptSync Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Source: %s)", cfg.Port, cfg.SourceType)

	// Initialize the mirror document store
	store := database.New(cfg.DatabasePath)
	if err := store.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize store: %v", err)
	}
	defer store.Close()
	log.Printf("✅ Store initialized at %s", store.Path())

	// Select the content source
	source, err := buildSource(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to configure content source: %v", err)
	}

	// Initialize sync service with Prometheus instrumentation
	syncService := services.NewSyncService(store, source, cfg.SourceType)
	syncService.SetMetrics(services.InitMetrics())

	// Run an initial sync pass so the mirror is warm before serving
	if cfg.SyncOnStartup {
		if err := syncService.TriggerSync(context.Background()); err != nil {
			log.Printf("⚠️  Startup sync failed: %v", err)
		}
	}

	// Start the periodic sync scheduler
	var scheduler *services.SyncScheduler
	if cfg.AutoSyncEnabled {
		scheduler, err = services.NewSyncScheduler(syncService, cfg.SyncInterval, cfg.SyncMode, cfg.SyncSchedule)
		if err != nil {
			log.Fatalf("❌ Failed to create sync scheduler: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("❌ Failed to start sync scheduler: %v", err)
		}
		log.Printf("⏰ Auto-sync enabled (every %s, mode: %s)", cfg.SyncInterval, cfg.SyncMode)
	}

	// Hot-reload: re-sync when the filesystem source tree changes
	if cfg.WatchEnabled && cfg.SourceType == config.SourceFilesystem {
		go startSourceWatcher(cfg.SourcePath, syncService)
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "PromptSync v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("promptsync")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Load rate limiting configuration
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, SyncTrigger=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.SyncTriggerMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Global API rate limiter, excludes health checks and metrics
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(syncService)
	contentHandler := handlers.NewContentHandler(syncService)
	syncHandler := handlers.NewSyncHandler(syncService)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Get("/commands", contentHandler.GetCommands)
	api.Get("/personas", contentHandler.GetPersonas)
	api.Get("/rules", contentHandler.GetRules)
	api.Get("/database", contentHandler.GetDatabase)
	api.Post("/sync", middleware.SyncTriggerRateLimiter(rateLimitConfig), syncHandler.Trigger)
	api.Get("/sync/status", syncHandler.Status)
	api.Post("/cache/clear", syncHandler.ClearCache)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if scheduler != nil {
			if err := scheduler.Stop(); err != nil {
				log.Printf("⚠️ Error stopping sync scheduler: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// buildSource constructs the content source selected by configuration
func buildSource(cfg *config.Config) (loader.Source, error) {
	switch cfg.SourceType {
	case config.SourceGitHub:
		src, err := loader.NewGitHubSource(cfg.GitHubRepo, cfg.GitHubBranch, cfg.GitHubToken, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		log.Printf("🔗 Using GitHub source %s@%s (cache TTL: %s)", cfg.GitHubRepo, cfg.GitHubBranch, cfg.CacheTTL)
		return src, nil
	default:
		log.Printf("📁 Using filesystem source at %s", cfg.SourcePath)
		return loader.NewFilesystemSource(cfg.SourcePath), nil
	}
}

// startSourceWatcher watches the content tree for changes and auto-syncs
func startSourceWatcher(basePath string, syncService *services.SyncService) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", basePath, err)
		return
	}

	// Watch the base tree plus the subtrees content can live in. New
	// nested command directories are picked up on the next restart.
	dirs := []string{absPath}
	for _, sub := range []string{"commands", "commands/shared", "shared"} {
		dirs = append(dirs, filepath.Join(absPath, sub))
	}
	watched := 0
	for _, dir := range dirs {
		if err := watcher.Add(dir); err == nil {
			watched++
		}
	}
	if watched == 0 {
		log.Printf("⚠️  Failed to watch %s, hot-reload disabled", absPath)
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", basePath)

	// Debounce timer to avoid multiple syncs for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove ||
				event.Op&fsnotify.Rename == fsnotify.Rename {
				// Debounce: cancel previous timer and set a new one
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					log.Printf("🔄 Detected changes in %s, re-syncing content...", basePath)

					if err := syncService.TriggerSync(context.Background()); err != nil {
						log.Printf("❌ Failed to sync after file change: %v", err)
					} else {
						log.Printf("✅ Content synced successfully from %s", basePath)
					}
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
