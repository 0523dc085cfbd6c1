package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"eshop-prices-bot/internal/adapters/bot"
	"eshop-prices-bot/internal/adapters/eshop"
	"eshop-prices-bot/internal/adapters/state"
	"eshop-prices-bot/internal/adapters/telegram"
	"eshop-prices-bot/internal/domain"
	"eshop-prices-bot/internal/infra/config"
	"eshop-prices-bot/internal/infra/db"
	httpinfra "eshop-prices-bot/internal/infra/http"
	"eshop-prices-bot/internal/infra/log"
	"eshop-prices-bot/internal/infra/metrics"
	"eshop-prices-bot/internal/usecase/pricecache"
	"eshop-prices-bot/internal/usecase/promo"
	"eshop-prices-bot/internal/usecase/sessions"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)
	srv := httpinfra.NewServer(logger)
	go func() {
		if err := srv.Start(cfg.MetricsAddr); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error().Err(err).Msg("служебный HTTP сервер остановлен")
		}
	}()

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать хранилище состояния")
	}
	defer closeStore()

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	logger.Info().Str("bot", botAPI.Self.UserName).Msg("бот авторизован")

	source, err := eshop.NewClient(cfg.Eshop.BaseURL, cfg.Eshop.RequestTimeout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать клиент каталога")
	}

	tg := telegram.NewClient(botAPI, logger)
	cache := pricecache.New(cfg.CacheTTL(), logger)
	registry := sessions.NewRegistry()
	handler := bot.NewHandler(tg, source, cache, registry, logger)
	notifier := promo.NewNotifier(source, cache, registry, tg, logger)

	dispatcher := bot.NewDispatcher(bot.DispatcherOptions{
		Feed:         tg,
		Handler:      handler,
		Store:        store,
		Cache:        cache,
		Sessions:     registry,
		Notifier:     notifier,
		Log:          logger,
		PollTimeout:  cfg.PollTimeout(),
		TaskInterval: cfg.PromoInterval(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-stop
		logger.Info().Msg("получен сигнал остановки")
		cancel()
	}()

	if err := dispatcher.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("диспетчер завершился с ошибкой")
	}
	_ = srv.Shutdown(context.Background())
}

func buildStore(cfg config.AppConfig) (domain.StateStore, func(), error) {
	switch cfg.State.Backend {
	case "file":
		store, err := state.NewFileStore(cfg.State.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "postgres":
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("подключение к Postgres: %w", err)
		}
		store, err := state.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return state.NewRedisStore(client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный бэкенд состояния: %q", cfg.State.Backend)
	}
}
