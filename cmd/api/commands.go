package main

import (
	"fmt"
	"taskManager/internal/app"
	"taskManager/internal/config"

	"github.com/spf13/cobra"
)

type options struct {
	configFile string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "taskmanager",
		Short:         "REST API для управления задачами",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "config.yml", "путь к файлу конфигурации")

	cmd.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
	)
	return cmd
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP сервер",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}
}

func newMigrateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Миграции схемы PostgreSQL",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Применить все миграции",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd, opts, true)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Откатить все миграции",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate(cmd, opts, false)
			},
		},
	)
	return cmd
}

func serve(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}

	a := app.New(cfg)
	if err := a.Init(cmd.Context()); err != nil {
		return err
	}
	return a.Run(cmd.Context())
}

func migrate(cmd *cobra.Command, opts *options, up bool) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}

	a := app.New(cfg)
	if err := a.InitLogger(); err != nil {
		return err
	}
	return a.Migrate(cmd.Context(), up)
}
