package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-llm-relay/internal/application"
	"telegram-llm-relay/internal/config"
	"telegram-llm-relay/internal/domain/ports/repository"
	aiAdapters "telegram-llm-relay/internal/infra/adapters/ai"
	tele "telegram-llm-relay/internal/infra/adapters/telegram"
	pg "telegram-llm-relay/internal/infra/db/postgres"
	"telegram-llm-relay/internal/infra/i18n"
	"telegram-llm-relay/internal/infra/logging"
	"telegram-llm-relay/internal/infra/metrics"
	red "telegram-llm-relay/internal/infra/redis"
	"telegram-llm-relay/internal/infra/sched"
	"telegram-llm-relay/internal/infra/security"
	"telegram-llm-relay/internal/infra/store"
	"telegram-llm-relay/internal/infra/web"
	"telegram-llm-relay/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (verbose, unredacted logs)")
	mintToken := flag.Bool("mint-admin-token", false, "print an admin API token and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *mintToken {
		tok, err := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL).Mint()
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Encryption ----
	var encSvc *security.EncryptionService
	if cfg.Security.EncryptionKey != "" {
		encSvc, err = security.NewEncryptionService(cfg.Security.EncryptionKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
	}
	codec := store.NewCodec(encSvc)

	// ---- Persistence ----
	repo, closeRepo, err := openRepo(ctx, cfg, codec, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("storage")
	}
	defer closeRepo()

	states := store.NewChatStore(repo, logger)
	if err := states.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("load chat states")
	}

	// ---- AI backend ----
	model, err := aiAdapters.New(ctx, cfg.AI, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.AI.Provider).Msg("ai adapter")
	}
	logger.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.Model).Msg("AI adapter ready")

	// ---- Telegram ----
	tr, err := i18n.NewDefault(cfg.Bot.Language)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, tr, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}

	chatUC := usecase.NewChatUseCase(states, model, botAdapter, cfg.Bot.TypingInterval, logger, cfg.Runtime.Dev)
	facade := application.NewBotFacade(chatUC, tr, logger)

	if err := botAdapter.SetMenuCommands(ctx, usecase.Commands); err != nil {
		logger.Warn().Err(err).Msg("failed to register command menu")
	}

	// ---- Autosave worker ----
	worker := sched.NewAutosaveWorker(cfg.Storage.AutosaveInterval, states, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Admin server ----
	var admin *web.Server
	if cfg.Admin.Port > 0 {
		admin = web.NewServer(cfg.Admin.Port, states, web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL), logger)
		go func() {
			if err := admin.Start(); err != nil {
				logger.Error().Err(err).Msg("admin server stopped")
			}
		}()
	}

	// Blocks until SIGINT/SIGTERM.
	if err := botAdapter.StartPolling(ctx, facade); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("telegram polling stopped")
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("admin server shutdown")
		}
	}
	if err := states.Flush(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("final save failed")
		os.Exit(1)
	}
	logger.Info().Int("chats", states.Len()).Msg("chat states saved")
}

func openRepo(ctx context.Context, cfg *config.Config, codec store.Codec, logger *zerolog.Logger) (repository.ChatStateRepository, func(), error) {
	switch cfg.Storage.Driver {
	case "redis":
		cli, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return red.NewChatStateRepo(cli, cfg.Redis.Key, codec, logger), func() { _ = cli.Close() }, nil
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg.NewChatStateRepo(pool, codec, logger), pool.Close, nil
	default:
		repo, err := store.NewFileRepo(cfg.Storage.Path, codec, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	}
}
