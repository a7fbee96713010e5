package main

import (
	"context"
	"flag"
	"log"
	"os"

	"FinFuse/internal/di"
	"FinFuse/pkg/config"
	"FinFuse/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	envFile := flag.String("env", ".env", "optional dotenv file with provider credentials")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath, *envFile)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	l, err := logger.New(&cfg.Logger)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	l.Info("starting finfuse",
		logger.String("env", cfg.Environment),
		logger.Int("providers", len(cfg.Providers)),
		logger.Bool("kafka", cfg.Kafka.Enabled),
		logger.Bool("clickhouse", cfg.ClickHouse.Enabled),
		logger.Bool("redis", cfg.Cache.Redis.Enabled))

	app, cleanup, err := di.InitializeApp(cfg, l)
	if err != nil {
		l.Error("app initialization failed", logger.Error(err))
		os.Exit(1)
	}

	runErr := app.Run(context.Background())
	cleanup()
	if runErr != nil {
		l.Error("app error", logger.Error(runErr))
		os.Exit(1)
	}
}
