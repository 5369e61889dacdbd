package main

import (
	"context"
	"fmt"

	"todoList/internal/app"
	"todoList/internal/config"
	"todoList/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "todo",
		Short:         "Личный список дел с синхронизацией",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zapcore.WarnLevel
			if opts.verbose {
				level = zapcore.InfoLevel
			}
			logger.InitStderr(level)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "путь к config.yml")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "подробный лог в stderr")

	cmd.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newEditCmd(opts),
		newDoneCmd(opts),
		newRemoveCmd(opts),
		newSyncCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
		newConfigCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// withApp собирает приложение по конфигурации, вызывает fn и освобождает ресурсы.
func withApp(ctx context.Context, opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("конфигурация: %w", err)
	}

	a, err := app.New(cfg).Init(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
