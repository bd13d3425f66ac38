package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_jewelry/internal/auth"
	"github.com/fjod/go_jewelry/internal/cache"
	"github.com/fjod/go_jewelry/internal/catalog"
	"github.com/fjod/go_jewelry/internal/config"
	"github.com/fjod/go_jewelry/internal/events"
	h "github.com/fjod/go_jewelry/internal/http"
	"github.com/fjod/go_jewelry/internal/repository"
	"github.com/fjod/go_jewelry/internal/service"
	"github.com/fjod/go_jewelry/pkg/circuitbreaker"
	"github.com/fjod/go_jewelry/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	// honour incoming traceparent headers so request logs join upstream traces
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	// Catalog and users
	cat, err := catalog.NewRepository(cfg.DBPath)
	if err != nil {
		return err
	}
	defer cat.Close()
	if err := cat.RunMigrations(cfg.MigrationsPath); err != nil {
		return err
	}
	log.Info("catalog ready", zap.String("db_path", cfg.DBPath))

	// Snapshot repository
	var repo repository.SnapshotRepository
	switch cfg.StoreBackend {
	case config.BackendMongo:
		mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return err
		}
		defer disconnect(mongoDB, log)

		mongoRepo := repository.NewMongoRepository(mongoDB)
		if err := mongoRepo.CreateIndexes(ctx); err != nil {
			return err
		}
		repo = mongoRepo
		log.Info("connected to MongoDB", zap.String("db", cfg.MongoDBName))
	default:
		repo = repository.NewMemoryRepository()
		log.Warn("using in-memory session store; sessions are lost on restart")
	}

	// Snapshot cache
	var snapshotCache cache.SnapshotCache = cache.NopCache{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// the breaker keeps serving from the repository until Redis is back
			log.Warn("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		snapshotCache = cache.NewBreakerCache(cache.NewRedisCache(redisClient), circuitbreaker.DefaultSettings(), log)
	}

	// Order events
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, log)
		defer func() {
			if err := kp.Close(); err != nil {
				log.Warn("kafka writer close failed", zap.Error(err))
			}
		}()
		publisher = kp
		log.Info("publishing order events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", events.Topic))
	}

	sessions := service.NewSessionService(repo, snapshotCache,
		service.WithLogger(log),
		service.WithPublisher(publisher),
	)
	defer sessions.Wait()

	// Fulfillment status updates
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if len(cfg.KafkaBrokers) > 0 {
		consumer := events.NewStatusConsumer(sessions, log, cfg.KafkaBrokers...)
		consumerDone := make(chan struct{})
		go func() {
			defer close(consumerDone)
			consumer.Run(consumerCtx)
		}()
		defer func() {
			stopConsumer()
			<-consumerDone
			if err := consumer.Close(); err != nil {
				log.Warn("kafka reader close failed", zap.Error(err))
			}
		}()
		log.Info("consuming order status updates", zap.String("topic", events.StatusTopic))
	}

	authService := auth.NewService(auth.NewSQLUserStore(cat.DB()), cfg.JWTSecret)

	router := h.NewRouter(h.RouterConfig{
		Sessions:       sessions,
		Catalog:        cat,
		Auth:           authService,
		Tokens:         authService,
		CookieStore:    h.NewCookieStore([]byte(cfg.SessionKey), cfg.CookieSecure),
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storefront listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

func disconnect(db *mongo.Database, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Client().Disconnect(ctx); err != nil {
		log.Warn("mongo disconnect failed", zap.Error(err))
	}
}
