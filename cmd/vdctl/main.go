// vdctl служебные команды: миграции, разовые проходы планировщика, назначение ролей.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/magabrotheeeer/video-downloader/internal/app"
	"github.com/magabrotheeeer/video-downloader/internal/config"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/migrations"
	"github.com/magabrotheeeer/video-downloader/internal/models"
	"github.com/magabrotheeeer/video-downloader/internal/storage/repository"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		cfg    *config.Config
		logger *slog.Logger
	)

	cliApp := &cli.App{
		Name:  "vdctl",
		Usage: "maintenance commands for video-downloader",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if cfg, err = config.Load(c.String("config")); err != nil {
				return err
			}
			logger = sl.SetupLogger(cfg.Env)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "database schema migrations",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply all pending migrations",
						Action: func(c *cli.Context) error {
							return withStorage(c.Context, cfg, func(db *repository.Storage) error {
								if err := migrations.Run(db.DB); err != nil {
									return err
								}
								logger.Info("migrations applied")
								return nil
							})
						},
					},
					{
						Name:  "version",
						Usage: "print current schema version",
						Action: func(c *cli.Context) error {
							return withStorage(c.Context, cfg, func(db *repository.Storage) error {
								version, dirty, err := migrations.Version(db.DB)
								if err != nil {
									return err
								}
								fmt.Fprintf(c.App.Writer, "version: %d, dirty: %t\n", version, dirty)
								return nil
							})
						},
					},
				},
			},
			{
				Name:  "purge",
				Usage: "remove expired downloads once",
				Action: func(c *cli.Context) error {
					return withInfra(c.Context, cfg, logger, func(infra *app.Infra) error {
						purged, err := infra.Scheduler(cfg).RunPurge(c.Context)
						if err != nil {
							return err
						}
						logger.Info("purge finished", slog.Int("purged", purged))
						return nil
					})
				},
			},
			{
				Name:  "reconcile",
				Usage: "requeue stale pending jobs and fail stuck processing jobs once",
				Action: func(c *cli.Context) error {
					return withInfra(c.Context, cfg, logger, func(infra *app.Infra) error {
						requeued, failed, err := infra.Scheduler(cfg).RunReconcile(c.Context)
						if err != nil {
							return err
						}
						logger.Info("reconcile finished", slog.Int("requeued", requeued), slog.Int("failed", failed))
						return nil
					})
				},
			},
			{
				Name:      "set-role",
				Usage:     "change user role",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "user `EMAIL`", Required: true},
					&cli.StringFlag{Name: "role", Usage: "user or admin", Value: models.RoleAdmin},
				},
				Action: func(c *cli.Context) error {
					role := c.String("role")
					if role != models.RoleUser && role != models.RoleAdmin {
						return cli.Exit(fmt.Sprintf("unknown role %q", role), 2)
					}
					return withStorage(c.Context, cfg, func(db *repository.Storage) error {
						if err := db.SetRoleByEmail(c.Context, c.String("email"), role); err != nil {
							return err
						}
						logger.Info("role updated", slog.String("email", c.String("email")), slog.String("role", role))
						return nil
					})
				},
			},
		},
		HideHelpCommand: true,
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withStorage(ctx context.Context, cfg *config.Config, fn func(db *repository.Storage) error) error {
	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

// withInfra поднимает полную инфраструктуру: проходам нужны брокер, кэш и хранилища.
func withInfra(ctx context.Context, cfg *config.Config, logger *slog.Logger, fn func(infra *app.Infra) error) error {
	infra, err := app.NewInfra(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := infra.Close(); err != nil {
			logger.Error("failed to close resources", sl.Err(err))
		}
	}()
	return fn(infra)
}
