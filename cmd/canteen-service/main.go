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

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/cache"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/config"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/consumer"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/db"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/handlers"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/logging"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/publisher"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/service"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store/memory"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatalf("❌ %s stopped: %v", cfg.ServiceName, err)
	}
	log.Printf("👋 %s has been gracefully shut down", cfg.ServiceName)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Connect to Redis
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisHost, cfg.RedisPort, cfg.CacheTTL)
		if err != nil {
			return err
		}
		defer redisCache.Close()

		if cfg.StoreDriver == config.StoreDriverMemory {
			// ids restart with the process, so entries from a previous run are wrong
			if n, err := redisCache.DeleteByPattern(ctx, db.CachePattern); err != nil {
				log.Printf("⚠️ Failed to flush menu cache: %v", err)
			} else if n > 0 {
				log.Printf("🗑️ Flushed %d stale menu cache keys", n)
			}
		}
		st = db.NewCachedStore(st, redisCache)
	}

	// Connect to RabbitMQ
	var (
		rabbitMQ  *messaging.RabbitMQ
		publishTo service.EventPublisher
	)
	if cfg.RabbitMQEnabled {
		rabbitMQ, err = messaging.NewRabbitMQ(cfg.RabbitMQHost, cfg.RabbitMQPort, cfg.RabbitMQUser, cfg.RabbitMQPassword)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()

		orderPublisher, err := publisher.NewOrderPublisher(rabbitMQ)
		if err != nil {
			return fmt.Errorf("failed to create publisher: %w", err)
		}
		publishTo = orderPublisher
	}

	inventory := service.NewInventoryService(st, logger)
	orders := service.NewOrderService(service.OrderServiceConfig{
		Store:          st,
		Inventory:      inventory,
		Publisher:      publishTo,
		Clock:          service.SystemClock{},
		Logger:         logger,
		PendingTimeout: cfg.PendingTimeout,
	})

	if cfg.SeedMenu {
		if err := seedMenu(ctx, inventory); err != nil {
			return err
		}
	}

	router := handlers.NewRouter(
		handlers.NewMenuHandler(inventory, logger),
		handlers.NewOrderHandler(orders, logger),
		logger,
	)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Register with Consul
	if cfg.ConsulEnabled {
		consul, err := discovery.NewConsulClient(cfg.ConsulHost, cfg.ConsulPort)
		if err != nil {
			return err
		}
		err = consul.Register(discovery.ServiceConfig{
			Name:    cfg.ServiceName,
			ID:      cfg.ServiceID,
			Address: cfg.ServiceAddress,
			Port:    cfg.Port,
			Tags:    []string{"api", "menu", "orders"},
		})
		if err != nil {
			return err
		}
		// Deregister on shutdown
		defer func() {
			if err := consul.Deregister(cfg.ServiceID); err != nil {
				log.Printf("⚠️ %v", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("🚀 %s starting on http://0.0.0.0:%d", cfg.ServiceName, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server failed to shut down gracefully: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return service.NewSweeper(orders, cfg.SweepInterval, logger).Run(gctx)
	})

	if rabbitMQ != nil {
		consumerTag := "kitchen-" + uuid.NewString()
		deliveries, err := rabbitMQ.Consume(string(models.OrderPaidEvent), consumerTag, 10)
		if err != nil {
			return err
		}
		kitchen := consumer.NewKitchenConsumer(inventory, cfg.KitchenRetryDelay, logger)
		g.Go(func() error {
			defer rabbitMQ.Cancel(consumerTag)
			return kitchen.Run(gctx, deliveries)
		})
	}

	return g.Wait()
}

// openStore returns the configured store and a func that releases it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Println("⚠️ Using in-memory store, data is lost on restart")
		return memory.NewStore(), func() {}, nil

	case config.StoreDriverPostgres:
		// Connect to PostgreSQL
		database, err := db.NewPostgresDB(ctx, cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		return db.NewStore(database), func() { database.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
