package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/keygate/adapters/events"
	"github.com/layer-3/keygate/adapters/signature"
	"github.com/layer-3/keygate/adapters/store"
	"github.com/layer-3/keygate/adapters/tokenizer"
	"github.com/layer-3/keygate/internal/config"
	"github.com/layer-3/keygate/internal/logging"
	"github.com/layer-3/keygate/ports"
	"github.com/layer-3/keygate/service"
	transport "github.com/layer-3/keygate/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", logging.Error(err))
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logging.Fatalf(logger, err, "keygate stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	clock := quartz.NewReal()
	g, ctx := errgroup.WithContext(ctx)

	signKey, err := loadSigningKey(cfg, logger)
	if err != nil {
		return err
	}

	nonces, publisher, closeBackend, err := setupBackend(ctx, g, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer closeBackend()
	loginEvents := events.NewWatermillPublisher(publisher, cfg.EventsTopic)
	logger.Info("publishing login events", slog.String("topic", loginEvents.Topic()))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	authService := service.NewAuthService(
		cfg.ChallengeBuilder(),
		nonces,
		signature.NewEIP191Recoverer(),
		tokenizer.NewJWTTokenizer(signKey, cfg.JWTIssuer, cfg.SessionTTL, clock),
		loginEvents,
		service.WithClock(clock),
		service.WithLogger(logger),
		service.WithMetrics(registry),
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           transport.SetupRouter(authService, registry, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.HTTPAddr), slog.String("domain", cfg.SIWEDomain))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// setupBackend selects the Redis backend when REDIS_URL is set and the
// in-memory one otherwise.
func setupBackend(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	clock quartz.Clock,
	logger *slog.Logger,
) (ports.NonceStore, message.Publisher, func(), error) {
	wmLogger := watermill.NewSlogLogger(logging.Child(logger, "events"))

	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, nonces are kept in memory")
		nonces := store.NewMemoryStore(cfg.ChallengeTTL, clock).WithRetention(cfg.NonceRetention)
		g.Go(func() error {
			return nonces.Run(ctx, cfg.SweepInterval)
		})
		publisher := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		return nonces, publisher, func() { _ = publisher.Close() }, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		wmLogger,
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, err
	}

	nonces := store.NewRedisStore(client, cfg.ChallengeTTL, clock).WithRetention(cfg.NonceRetention)
	closeFn := func() {
		_ = publisher.Close()
		_ = client.Close()
	}
	return nonces, publisher, closeFn, nil
}

func loadSigningKey(cfg *config.Config, logger *slog.Logger) (*ecdsa.PrivateKey, error) {
	if cfg.JWTPrivateKey != "" {
		return tokenizer.ParsePrivateKey(cfg.JWTPrivateKey)
	}
	// Credentials signed with an ephemeral key do not survive a restart.
	logger.Warn("JWT_PRIVATE_KEY not set, generating an ephemeral signing key")
	return tokenizer.GenerateKey()
}
