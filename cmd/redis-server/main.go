package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mathiusj/goredis-replica/internal/config"
	"github.com/mathiusj/goredis-replica/internal/logger"
	"github.com/mathiusj/goredis-replica/internal/server"
)

func main() {
	cfg := config.New()
	cfg.ParseFlags()

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server: %v", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down")
		srv.Stop()
	}()

	srv.Wait()
}
