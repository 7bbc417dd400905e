package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apiv1 "github.com/recall-hq/recall/pkg/api/v1"
	"github.com/recall-hq/recall/pkg/auth"
	"github.com/recall-hq/recall/pkg/common"
	"github.com/recall-hq/recall/pkg/conversation"
	"github.com/recall-hq/recall/pkg/credentials"
	"github.com/recall-hq/recall/pkg/llm"
	"github.com/recall-hq/recall/pkg/oauth"
	"github.com/recall-hq/recall/pkg/orchestrator"
	"github.com/recall-hq/recall/pkg/pending"
	"github.com/recall-hq/recall/pkg/sources"
	"github.com/recall-hq/recall/pkg/sources/providers"
	"github.com/recall-hq/recall/pkg/types"
)

const shutdownTimeout = 10 * time.Second

type Gateway struct {
	Config      types.AppConfig
	RedisClient *common.RedisClient
	httpServer  *http.Server
	echo        *echo.Echo
	ctx         context.Context
	cancelFunc  context.CancelFunc

	baseRouteGroup *echo.Group

	credentialRepo credentials.Repository
	credentials    *credentials.Store
	googleOAuth    *oauth.GoogleClient
	sourceRegistry *sources.Registry
	pendingStore   pending.Store
	conversations  conversation.Store
	router         *orchestrator.Router
}

func NewGateway() (*Gateway, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return nil, err
	}
	config := configManager.GetConfig()

	// Setup logging
	if config.PrettyLogs {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	var redisClient *common.RedisClient

	// Local mode: skip Redis and Postgres
	if config.IsLocalMode() {
		log.Info().Msg("running in local mode - Redis and Postgres disabled")
	} else {
		redisClient, err = common.NewRedisClient(config.Database.Redis, common.WithClientName("RecallGateway"))
		if err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	gateway := &Gateway{
		Config:         config,
		RedisClient:    redisClient,
		ctx:            ctx,
		cancelFunc:     cancel,
		sourceRegistry: sources.NewRegistry(),
		googleOAuth:    oauth.NewGoogleClient(config.OAuth.Google),
	}

	if err := gateway.initStores(); err != nil {
		cancel()
		return nil, err
	}
	gateway.initSources()
	gateway.initRouter()

	return gateway, nil
}

// initStores wires the credential, pending search, and conversation stores
// for the configured mode
func (g *Gateway) initStores() error {
	if g.RedisClient != nil {
		g.pendingStore = pending.NewRedisStore(g.RedisClient)
		g.conversations = conversation.NewRedisStore(g.RedisClient)
	} else {
		g.pendingStore = pending.NewMemoryStore()
		g.conversations = conversation.NewMemoryStore()
	}

	if g.Config.Database.Postgres.Host != "" {
		repo, err := credentials.NewPostgresRepository(g.Config.Database.Postgres)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := repo.RunMigrations(); err != nil {
			log.Warn().Err(err).Msg("failed to run postgres migrations")
		}
		g.credentialRepo = repo
	} else {
		log.Info().Msg("no postgres configured, credentials held in memory")
		g.credentialRepo = credentials.NewMemoryRepository()
	}

	encryptionKey := g.Config.OAuth.EncryptionKey
	if encryptionKey == "" {
		// Ephemeral key: stored credentials do not survive a restart
		encryptionKey = credentials.GenerateKey()
		log.Warn().Msg("no credential encryption key configured, using an ephemeral key")
	}
	cipher, err := credentials.NewCipher(encryptionKey)
	if err != nil {
		return fmt.Errorf("invalid credential encryption key: %w", err)
	}

	g.credentials = credentials.NewStore(g.credentialRepo, cipher, g.googleOAuth)
	return nil
}

func (g *Gateway) initSources() {
	g.sourceRegistry.Register(providers.NewGmailFetcher(nil))
	g.sourceRegistry.Register(providers.NewCalendarFetcher(nil))
	log.Info().
		Int("providers", len(g.sourceRegistry.List())).
		Msg("source providers registered")
}

func (g *Gateway) initRouter() {
	client := llm.NewClient(g.Config.LLM)
	g.router = orchestrator.NewRouter(
		g.Config.Sources,
		client,
		client,
		g.credentials,
		g.sourceRegistry,
		g.pendingStore,
		g.conversations,
	)
}

func (g *Gateway) initHTTP() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())

	// Configure logging middleware
	if g.Config.Gateway.HTTP.EnablePrettyLogs {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human}\n",
		}))
	}

	// CORS
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: g.Config.Gateway.HTTP.CORS.AllowedOrigins,
		AllowHeaders: g.Config.Gateway.HTTP.CORS.AllowedHeaders,
		AllowMethods: g.Config.Gateway.HTTP.CORS.AllowedMethods,
	}))

	e.Use(middleware.Recover())

	g.echo = e
	g.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port),
		Handler: e,
	}

	g.baseRouteGroup = e.Group(apiv1.HttpServerBaseRoute)

	// Health check works without Redis in local mode
	apiv1.NewHealthGroup(g.baseRouteGroup.Group("/health"), g.RedisClient)

	askGroup := g.baseRouteGroup.Group("/ask")
	askGroup.Use(apiv1.NewAuthMiddleware(auth.NewJWTValidator(g.Config.Gateway.Auth.JWTSecret)))
	apiv1.NewAskGroup(askGroup, g.router)

	return nil
}

// StartAsync starts the gateway server without blocking.
// Use this when embedding the gateway in another process (e.g., CLI).
func (g *Gateway) StartAsync() error {
	if err := g.initHTTP(); err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Error().Err(err).Msg("failed to listen on http")
			return
		}

		if err := g.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	log.Info().
		Str("host", g.Config.Gateway.HTTP.Host).
		Int("port", g.Config.Gateway.HTTP.Port).
		Msg("gateway http server running")

	return nil
}

func (g *Gateway) Start() error {
	if err := g.StartAsync(); err != nil {
		return err
	}

	terminationSignal := make(chan os.Signal, 1)
	signal.Notify(terminationSignal, os.Interrupt, syscall.SIGTERM)
	<-terminationSignal

	log.Info().Msg("termination signal received. shutting down...")
	g.shutdown()

	return nil
}

// Shutdown gracefully shuts down the gateway (exported for external use)
func (g *Gateway) Shutdown() {
	g.shutdown()
}

func (g *Gateway) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := g.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	g.pendingStore.Stop()

	if closer, ok := g.credentialRepo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close credential repository")
		}
	}

	if g.RedisClient != nil {
		if err := g.RedisClient.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
	}

	g.cancelFunc()
}
