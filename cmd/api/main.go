package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tradehub-rest-api/internal/cache"
	"tradehub-rest-api/internal/config"
	"tradehub-rest-api/internal/handler"
	"tradehub-rest-api/internal/middleware"
	"tradehub-rest-api/internal/repository"
	"tradehub-rest-api/internal/router"
	"tradehub-rest-api/internal/service"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting TradeHub API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize the store based on config
	var store repository.Store
	switch cfg.Store.Type {
	case "mysql":
		mysqlDB, err := sql.Open("mysql", cfg.Store.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to open MySQL: %v", err)
		}
		mysqlDB.SetMaxOpenConns(10)
		mysqlDB.SetMaxIdleConns(5)
		mysqlDB.SetConnMaxLifetime(5 * time.Minute)

		if err := mysqlDB.Ping(); err != nil {
			log.Fatalf("Failed to reach MySQL: %v", err)
		}
		store, err = repository.NewMySQLStore(mysqlDB)
		if err != nil {
			log.Fatalf("Failed to initialize MySQL store: %v", err)
		}
		log.Println("MySQL store initialized")
	default: // sqlite
		if dir := filepath.Dir(cfg.Store.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Fatalf("Failed to create data directory: %v", err)
			}
		}
		sqliteStore, err := repository.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite store: %v", err)
		}
		store = sqliteStore
		log.Println("SQLite store initialized")
	}
	defer store.Close()

	// Initialize the view cache
	var viewCache cache.Cache
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, falling back to memory cache: %v", err)
			viewCache = cache.NewMemoryCache()
		} else {
			viewCache = redisCache
			log.Println("Redis cache initialized")
		}
	} else {
		viewCache = cache.NewMemoryCache()
		log.Println("Memory cache initialized")
	}
	defer viewCache.Close()

	// Initialize services
	directory := service.NewTradingUserDirectory(store, viewCache, cfg.Cache.TTL)
	lifecycle := service.NewTransactionLifecycleManager(directory, store)

	// Restore persisted state
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	users, transactions, err := store.LoadAll(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to load persisted state: %v", err)
	}
	directory.Restore(users)
	lifecycle.Restore(transactions)
	log.Printf("Restored %d user(s) and %d transaction(s)", len(users), len(transactions))

	// Start the periodic trust scan
	trustScan := service.NewTrustScanScheduler(directory, service.TrustScanConfig{
		ScanInterval: cfg.Trust.ScanInterval,
	})
	trustScan.Start()

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version)
	userHandler := handler.NewUserHandler(directory, lifecycle)
	transactionHandler := handler.NewTransactionHandler(lifecycle)
	adminHandler := handler.NewAdminHandler(directory, lifecycle, store)

	// Create auth middleware with injected dependencies (NO GLOBALS!)
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		APIKeys: cfg.App.APIKeys,
	})

	// Create router
	r := router.New(router.Config{
		Handler:            healthHandler,
		UserHandler:        userHandler,
		TransactionHandler: transactionHandler,
		AdminHandler:       adminHandler,
		AuthMiddleware:     authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	trustScan.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
