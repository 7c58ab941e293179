package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tingxie/internal/config"
	"tingxie/internal/pipeline"
	"tingxie/internal/server"

	"github.com/sirupsen/logrus"
)

// Serve runs the upload service in the foreground until interrupted.
func Serve(cfg *config.Config, logger *logrus.Logger) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	// Write pid file.
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()

	pipe, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	srv := server.New(cfg, logger, pipe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		s := <-sigCh
		logger.Infof("received signal %s, shutting down", s)
		cancel()
	}()

	return srv.Start(ctx)
}
