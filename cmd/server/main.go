package main // Entry point package

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fanoutlabs/graph-broker/internal/config"
	"github.com/fanoutlabs/graph-broker/internal/database"
	"github.com/fanoutlabs/graph-broker/internal/graph"
	"github.com/fanoutlabs/graph-broker/internal/handler"
	"github.com/fanoutlabs/graph-broker/internal/middleware"
	"github.com/fanoutlabs/graph-broker/internal/oauth"
	"github.com/fanoutlabs/graph-broker/internal/queue"
	"github.com/fanoutlabs/graph-broker/internal/repository"
	"github.com/fanoutlabs/graph-broker/internal/router"
	"github.com/fanoutlabs/graph-broker/internal/service"
	"github.com/fanoutlabs/graph-broker/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.Env == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		// Everything stateful lives in the store; without it the
		// credential core cannot operate at all.
		log.Fatal().Msg("redis unavailable, refusing to start")
	}
	kv := store.NewRedis(rdb)

	vault := repository.NewTokenVault(kv)
	registry := repository.NewTenantRegistryRepo(kv)
	accounts := repository.NewAccountIndexRepo(kv, registry)
	events := repository.NewEventRepo(kv)

	var archive *repository.ArchiveRepo
	if cfg.ArchiveEnabled() {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Warn().Err(err).Msg("archive database unavailable, continuing without it")
		} else {
			archive = repository.NewArchiveRepo(db)
		}
	}

	var publisher *service.EventPublisher
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		publisher = service.NewEventPublisher(url)
		go func() {
			if err := queue.StartEventConsumer(); err != nil {
				log.Error().Err(err).Msg("event consumer stopped")
			}
		}()
	}

	gclient := graph.NewClient(cfg.GraphBaseURL, cfg.AppID, cfg.AppSecret, cfg.RedirectURI())
	flow := oauth.New(gclient, vault, registry, accounts, kv, archive)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.SlidingWindow(config.LoadRateLimitConfig(), kv))

	router.RegisterRoutes(e)
	router.RegisterWebhook(e, handler.NewWebhookHandler(cfg, events, publisher, archive))
	router.RegisterOAuth(e, handler.NewOAuthHandler(flow))
	router.RegisterAdmin(e, handler.NewTenantHandler(registry), handler.NewEventHandler(events), cfg.AdminJWTSecret)

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")

	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
