package main

import (
	"anonchat/backend/internal/api/handler"
	"anonchat/backend/internal/app"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/logging"
	"anonchat/backend/internal/telegram"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        h,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting anonchat backend", zap.String("storage", cfg.StorageDriver))

	// 1. Ініціалізація залежностей
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	// 2. Telegram-бот
	if cfg.BotToken != "" {
		bot, err := telegram.NewBotService(cfg.BotToken, a.Hub, a.Registry, a.Moderation, a.Localizer)
		if err != nil {
			logger.Fatal("failed to start telegram bot", zap.Error(err))
		}
		a.Hub.SetClientRestorer(bot.RestoreClient)
		go bot.Run(ctx)
	} else {
		logger.Warn("BOT_TOKEN is empty, telegram transport disabled")
	}

	// 3. Головний диспетчер
	go func() {
		if err := a.Hub.Run(ctx, a.Bus); err != nil {
			logger.Error("chat hub stopped", zap.Error(err))
			stop()
		}
	}()

	// 4. HTTP: web transport and admin console
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(a.Hub, a.Registry, a.Moderation, cfg.JWTSecret)
	servers := []*http.Server{
		newServer(cfg.HTTPAddr, handler.NewPublicRouter(h)),
		newServer(cfg.AdminAddr, handler.NewAdminRouter(h, gin.Accounts{cfg.AdminUsername: cfg.AdminPassword})),
	}
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("http server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", zap.String("addr", srv.Addr), zap.Error(err))
				stop()
			}
		}(srv)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
}
