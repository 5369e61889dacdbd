package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"todoList/internal/app"
	"todoList/internal/config"
	"todoList/internal/logger"

	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", config.DefaultPath, "путь к config.yml")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("конфигурация: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.Options{
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	}); err != nil {
		os.Stderr.WriteString("логгер: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg).Init(ctx)
	if err != nil {
		logger.Error("App: Ошибка инициализации", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("App: Сервер завершился с ошибкой", err)
	}
	logger.Info("App: Работа завершена")
}
