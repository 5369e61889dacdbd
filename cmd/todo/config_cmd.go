package main

import (
	"fmt"

	"todoList/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Работа с конфигурацией",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Создать config.yml со значениями по умолчанию",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Write(opts.configPath, config.Default(), force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Конфигурация записана в %s\n", opts.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "перезаписать существующий файл")

	cmd.AddCommand(initCmd)
	return cmd
}
