package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"clinica-cloud/internal/api"
	"clinica-cloud/internal/auth"
	"clinica-cloud/internal/cache"
	"clinica-cloud/internal/config"
	"clinica-cloud/internal/directory"
	"clinica-cloud/internal/events"
	"clinica-cloud/internal/factory"
	"clinica-cloud/internal/metrics"
	"clinica-cloud/internal/provision"
	"clinica-cloud/internal/resolver"
	"clinica-cloud/internal/store"
)

// @title Clinica Cloud Admin Console API
// @version 1.0
// @description Tenant resolution and connection management for the clinic SaaS console
// @host localhost:8080
// @BasePath /
// @schemes http

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	// Init Metrics
	metrics.Init()

	// Load Configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded")

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret)

	// Tenant directory
	dir, err := directory.NewClient(cfg.Directory.URL)
	if err != nil {
		log.Fatalf("Failed to init tenant directory: %v", err)
	}
	defer dir.Close()
	log.Println("Tenant directory connected")

	// Store pools
	connector, err := store.NewConnector(
		cfg.Store.SharedURL,
		cfg.Store.SharedName,
		cfg.Store.IsolatedDSNTemplate,
		nil,
	)
	if err != nil {
		log.Fatalf("Failed to init shared store: %v", err)
	}
	defer connector.Close()
	log.Println("Shared store connected")

	creator, err := store.NewCreator(cfg.Directory.URL, "env:ISOLATED_STORE_SECRET")
	if err != nil {
		log.Fatalf("Failed to init store creator: %v", err)
	}
	defer creator.Close()

	// RabbitMQ events
	eventsClient, err := events.NewClient(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer eventsClient.Close()
	log.Println("RabbitMQ connected")

	// Connection cache + factory
	connCache := cache.New()
	res := resolver.New(cfg.Resolver.AppDomain, cfg.Resolver.PreviewDomains, cfg.Resolver.DevTenantKey)
	connFactory := factory.New(res, dir, connCache, connector)

	// Push-based invalidation: status changes anywhere drop our handles.
	invalidator, err := events.StartInvalidator(eventsClient.GetConnection(), connCache)
	if err != nil {
		log.Fatalf("Failed to start invalidation consumer: %v", err)
	}

	// Idle reaper off the request path
	reaperStop := make(chan struct{})
	connCache.StartReaper(cfg.Cache.ReapInterval.Std(), cfg.Cache.MaxIdle.Std(), reaperStop)

	var dns provision.DNSActivator = provision.NoopDNS{}
	if cfg.DNS.WebhookURL != "" {
		dns = provision.NewWebhookDNS(cfg.DNS.WebhookURL)
	}
	provisioner := provision.New(dir, creator, dns, eventsClient)

	// Init API
	apiHandler := api.NewAPI(connFactory, connCache, dir, provisioner, eventsClient, tokens, cfg)
	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: apiHandler.Router(),
	}

	// Graceful Shutdown Setup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("🚀 Starting admin console on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done() // Wait for interrupt signal
	log.Println("Shutdown initiated...")

	// Shutdown sequence
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Stop HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	// Stop background work, then drop every cached handle
	close(reaperStop)
	invalidator.Stop()
	connCache.Shutdown()

	log.Println("Graceful shutdown complete")
}
