package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/relaybot/relaybot/internal/backend"
	"github.com/relaybot/relaybot/internal/bot"
	"github.com/relaybot/relaybot/internal/channel"
	"github.com/relaybot/relaybot/internal/channel/adapters/telegram"
	"github.com/relaybot/relaybot/internal/config"
	"github.com/relaybot/relaybot/internal/handlers"
	"github.com/relaybot/relaybot/internal/logger"
	"github.com/relaybot/relaybot/internal/reply"
	"github.com/relaybot/relaybot/internal/server"
	"github.com/relaybot/relaybot/internal/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			cfgPath, _ := cmd.Flags().GetString("config")
			runServe(cfgPath)
		},
	}
}

func runServe(cfgPath string) {
	fx.New(
		fx.Provide(
			provideConfig(cfgPath),
			provideLogger,
			provideBackendClient,
			provideSessionManager,
			provideDownloader,
			provideComposer,
			provideChannelRegistry,
			provideFacade,
			handlers.NewPingHandler,
			provideReplyHandler,
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig(path string) func() (config.Config, error) {
	return func() (config.Config, error) {
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		cfg, err := config.Load(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
		return cfg, nil
	}
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideBackendClient(log *slog.Logger, cfg config.Config) backend.Client {
	return backend.NewHTTPClient(log, cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Timeout())
}

func provideSessionManager(log *slog.Logger, cfg config.Config) *session.Manager {
	return session.NewManager(log, session.Options{
		TTL:           cfg.Session.TTL(),
		SystemPrompt:  cfg.Bot.SystemPrompt,
		MaxHistoryLen: cfg.Session.MaxHistoryLen,
		MaxMessages:   cfg.Session.MaxMessages,
		MaxTokens:     cfg.Session.MaxTokens,
	})
}

func provideDownloader(log *slog.Logger, cfg config.Config) reply.Downloader {
	return reply.NewHTTPDownloader(log, os.TempDir(), cfg.Backend.Timeout())
}

func provideComposer(log *slog.Logger, cfg config.Config, downloader reply.Downloader) *reply.Composer {
	return reply.NewComposer(log, cfg.Backend.BaseURL, downloader)
}

func provideChannelRegistry(log *slog.Logger, cfg config.Config) (*channel.Registry, error) {
	registry := channel.NewRegistry()
	if cfg.Telegram.BotToken != "" {
		adapter, err := telegram.NewAdapter(log, cfg.Telegram.BotToken, cfg.Telegram.DefaultChatID)
		if err != nil {
			return nil, err
		}
		registry.MustRegister(adapter)
	}
	return registry, nil
}

func provideFacade(log *slog.Logger, cfg config.Config, sessions *session.Manager, client backend.Client, composer *reply.Composer, registry *channel.Registry) (*bot.Facade, error) {
	return bot.NewFacade(log, cfg.Bot, cfg.Backend.BotID, sessions, client, composer, registry,
		bot.NewImageCache(cfg.Session.TTL()), cfg.Session.TTL())
}

func provideReplyHandler(log *slog.Logger, facade *bot.Facade) *handlers.ReplyHandler {
	return handlers.NewReplyHandler(log, facade)
}

func provideServer(log *slog.Logger, cfg config.Config, pingHandler *handlers.PingHandler, replyHandler *handlers.ReplyHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, log, pingHandler, replyHandler)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
