package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/agent"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/config"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/logger"
)

func main() {
	cfg, err := agent.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(config.LogConfig{Level: cfg.LogLevel, Encoding: "console"})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("heartbeat agent started",
		zap.String("url", cfg.URL()),
		zap.String("label", cfg.Label),
		zap.Duration("interval", cfg.Every()),
	)
	agent.New(cfg, logger).Run(ctx)
	logger.Info("heartbeat agent stopped")
}
