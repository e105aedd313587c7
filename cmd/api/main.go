package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/app"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/config"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/handlers"
	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "json").Error("load config", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("startup failed", nil)
		os.Exit(1)
	}
	defer c.Close()

	go c.Hub.Run(ctx)
	go func() {
		if err := c.Broadcaster.Listen(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("project event listener stopped", nil)
		}
	}()

	web := handlers.NewApp(handlers.AppDeps{
		Accounts:        c.Accounts,
		Projects:        c.Projects,
		Wallets:         c.Wallets,
		Hub:             c.Hub,
		Log:             log,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		CORSOrigins:     cfg.CORSOrigins,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	})

	go func() {
		<-ctx.Done()
		// in-flight ledger calls may take up to LEDGER_TIMEOUT
		_ = web.ShutdownWithTimeout(cfg.LedgerTimeout + 5*time.Second)
	}()

	log.Info("http server listening", map[string]interface{}{"port": cfg.AppPort})
	if err := web.Listen(":" + cfg.AppPort); err != nil {
		log.WithError(err).Error("http server stopped", nil)
	}
}
