// server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rexlx/campfire/config"
	"github.com/rexlx/campfire/forum"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	store, err := openStore(cfg)
	if err != nil {
		logger.WithError(err).Fatal("could not initialize database")
	}
	defer store.Close()

	if err := store.CreateTables(context.Background()); err != nil {
		logger.WithError(err).Fatal("could not create tables")
	}
	logger.Info("database ready")

	// Create the forum handler, injecting the database dependency.
	forumHandler, err := forum.NewHandlers(store, forum.Options{
		BcryptCost:      cfg.BcryptCost,
		SessionLifetime: cfg.Session.Lifetime,
		CookieSecure:    cfg.Server.CookieSecure,
	})
	if err != nil {
		logger.WithError(err).Fatal("could not create forum handler")
	}

	svr := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      forumHandler.Handler(logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("forum running on http://localhost%s", svr.Addr)
		if err := svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed to start")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svr.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	logger.Info("server stopped")
}

func openStore(cfg *config.Config) (forum.Store, error) {
	if cfg.UsePostgres() {
		return forum.NewDatabase(cfg.Database.URL)
	}
	return forum.NewSQLiteDatabase(cfg.Database.SQLitePath)
}
