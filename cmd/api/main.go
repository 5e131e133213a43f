package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammadpnp/school-import/internal/bootstrap"
	"github.com/mohammadpnp/school-import/internal/config"
	"github.com/mohammadpnp/school-import/internal/logging"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return bootstrap.Serve(ctx, a)
}
