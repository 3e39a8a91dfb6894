package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/FleetTrack/config"
	"github.com/BearBump/FleetTrack/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.FleetTrack.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunFleetWorker(ctx, cfg, defaultWorkerFactories(), workerHTTPOpts{httpAddr: cfg.FleetTrack.WorkerHTTPAddr})
	if err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
