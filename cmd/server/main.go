package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"saledesk/backend/internal/cache"
	"saledesk/backend/internal/conditions"
	"saledesk/backend/internal/config"
	"saledesk/backend/internal/httpapi"
	"saledesk/backend/internal/platform"
	"saledesk/backend/internal/service"
	"saledesk/backend/internal/store"
	"saledesk/backend/internal/store/memory"
	pgstore "saledesk/backend/internal/store/postgres"
)

func main() {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("warning: .env not loaded: %v", err)
		}
	}

	cfg := config.Load()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if cfg.DBMigrate {
			if err := pg.Migrate(); err != nil {
				log.Fatalf("migrations failed: %v", err)
			}
			log.Println("migrations: up to date")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		if cfg.Production() {
			log.Fatalf("DATABASE_URL is required when APP_ENV=production")
		}
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	cacheStore := cache.ConditionsCache(cache.NoopConditionsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisConditionsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	if cfg.PlatformToken == "" {
		log.Println("warning: PLATFORM_TOKEN is empty; platform calls will be unauthenticated")
	}
	client, err := platform.NewClient(cfg.PlatformBaseURL, platform.StaticToken(cfg.PlatformToken), time.Duration(cfg.PlatformTimeoutSeconds)*time.Second)
	if err != nil {
		log.Fatalf("platform client: %v", err)
	}

	resolver := conditions.NewResolver(client, cacheStore, time.Duration(cfg.PlanConditionsTTLSeconds)*time.Second)
	svc := service.New(repo, client, resolver)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	// Platform calls are chained inside one request, so the write timeout
	// leaves room for several of them.
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      time.Duration(cfg.PlatformTimeoutSeconds)*4*time.Second + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("saledesk backend listening on %s (platform %s)", cfg.Address(), cfg.PlatformBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.PlatformBaseURL == "" {
		return fmt.Errorf("PLATFORM_BASE_URL must be set")
	}
	parsed, err := url.Parse(cfg.PlatformBaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("PLATFORM_BASE_URL must be an absolute http(s) URL, got %q", cfg.PlatformBaseURL)
	}
	if cfg.Production() && parsed.Scheme != "https" {
		return fmt.Errorf("PLATFORM_BASE_URL must use https in production")
	}
	return nil
}
