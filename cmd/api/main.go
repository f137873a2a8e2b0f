package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/drive"
	"github.com/safar/go-storefront/internal/fulfillment"
	"github.com/safar/go-storefront/internal/logging"
	"github.com/safar/go-storefront/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger config is not known yet
		logging.New(config.LogConfig{}).WithError(err).Fatal("load config")
	}

	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}
	defer db.Close()

	log.Info("connected to database")

	sessions := auth.NewGoTrueClient(cfg.Auth)

	var gate auth.Gate = sessions
	if cfg.Auth.JWTSecret != "" {
		gate = auth.NewJWTVerifier(cfg.Auth.JWTSecret)
		log.Info("verifying sessions locally with the auth JWT secret")
	}

	if len(cfg.Auth.AdminEmails) == 0 {
		log.Warn("AUTH_ADMIN_EMAILS is empty, every signed-in user can use admin routes")
	}

	srv := server.NewServer(cfg, server.Deps{
		DB:       db,
		Gate:     gate,
		Sessions: sessions,
		Files:    drive.NewGateway(cfg.Google),
		Log:      log,
	})

	if cfg.Fulfillment.Interval > 0 {
		go fulfillment.NewWorker(db, cfg.Fulfillment.Interval, log).Run(ctx)
	}

	addr := cfg.Server.Addr()
	log.WithField("addr", addr).Info("starting HTTP server")

	go func() {
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info("signal received, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
		os.Exit(1)
	}

	log.Info("server stopped")
}
