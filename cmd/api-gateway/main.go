package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/config"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/handlers"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/logging"
)

const canteenService = "canteen-service"

func newRouter(gateway *Gateway, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestID(), handlers.RequestLogger(logger))

	router.GET("/health", gateway.HealthCheck)
	router.GET("/services", gateway.ListServices)

	proxy := gateway.Proxy(canteenService)
	router.Any("/api/menu", proxy)
	router.Any("/api/menu/*path", proxy)
	router.Any("/api/orders", proxy)
	router.Any("/api/orders/*path", proxy)

	return router
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	var locator serviceLocator
	if cfg.ConsulEnabled {
		consul, err := discovery.NewConsulClient(cfg.ConsulHost, cfg.ConsulPort)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Consul, using %s: %v", cfg.CanteenServiceURL, err)
		} else {
			locator = consul
		}
	}

	gateway := NewGateway(locator, map[string]string{canteenService: cfg.CanteenServiceURL})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.GatewayPort),
		Handler:           newRouter(gateway, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("🚀 API Gateway starting on http://0.0.0.0:%d", cfg.GatewayPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start gateway: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if locator != nil {
		g.Go(func() error {
			return gateway.Watch(gctx, cfg.DiscoveryInterval)
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("👋 API Gateway stopped")
}
