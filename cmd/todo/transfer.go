package main

import (
	"context"
	"fmt"

	"todoList/internal/app"
	"todoList/internal/codec"

	"github.com/spf13/cobra"
)

type transferFlags struct {
	name   string
	format string
}

func (f *transferFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "имя списка")
	cmd.Flags().StringVarP(&f.format, "format", "f", string(codec.FormatJSON), "json или csv")
	_ = cmd.MarkFlagRequired("name")
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	flags := &transferFlags{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Сохранить список под другим именем или в другом формате",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := codec.ParseFormat(flags.format)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				if err := a.Service().Export(ctx, flags.name, format); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Экспортировано задач: %d\n", len(a.Service().Tasks(true)))
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	flags := &transferFlags{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Заменить список сохранённым ранее",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := codec.ParseFormat(flags.format)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.App) error {
				if err := a.Service().Import(ctx, flags.name, format); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Импортировано задач: %d\n", len(a.Service().Tasks(true)))
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}
