package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crew-scheduler/internal/api"
	"crew-scheduler/internal/clock"
	"crew-scheduler/internal/config"
	"crew-scheduler/internal/handler"
	"crew-scheduler/internal/logger"
	"crew-scheduler/internal/metrics"
	"crew-scheduler/internal/scheduler"
	"crew-scheduler/internal/service"
	"crew-scheduler/internal/storage"
	"crew-scheduler/pkg/telegram"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	Version         = "0.1.0"
	appName         = "crew-scheduler"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Technician crew scheduling service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd(), advanceCmd(), migrateCmd(), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.close()

			app.log.Info("Database schema is up to date")
			return nil
		},
	}
}

func advanceCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Open a business day (the current one by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.close()

			if app.cfg.BotEnabled() {
				client, err := telegram.NewClient(app.cfg.TelegramToken, app.cfg.TelegramDebug)
				if err != nil {
					return fmt.Errorf("create telegram client: %w", err)
				}
				app.svc.Days.AddNotifier(handler.NewHandler(client, app.svc, app.cfg.AdminChatID, app.log))
			}

			ctx := cmd.Context()
			day := app.svc.Clock.EffectiveDate(time.Now())
			if date != "" {
				if day, err = clock.ParseDate(date); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}

			advanced, err := app.svc.Days.AdvanceDay(ctx, day)
			if err != nil {
				return err
			}
			if advanced {
				fmt.Printf("business day %s opened\n", day)
			} else {
				fmt.Printf("business day %s was already open\n", day)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Business day to open (YYYY-MM-DD)")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the day-advance trigger and the admin bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.close()
			return serve(app)
		},
	}
}

type application struct {
	cfg     *config.Config
	log     *logrus.Logger
	db      *gorm.DB
	metrics *metrics.Metrics
	svc     *service.Services
}

// bootstrap loads the configuration, connects the database and builds the
// services. Repository construction migrates the schema.
func bootstrap() (*application, error) {
	cfg := config.Get()
	log := logger.New(cfg.LogLevel)

	auth, err := cfg.Clock()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}

	repos, err := service.NewRepositories(db, log)
	if err != nil {
		closeDB(db, log)
		return nil, fmt.Errorf("initialize repositories: %w", err)
	}

	m := metrics.New()
	svc := service.New(db, repos, auth, service.Options{Metrics: m, Logger: log})

	return &application{cfg: cfg, log: log, db: db, metrics: m, svc: svc}, nil
}

func (a *application) close() {
	closeDB(a.db, a.log)
}

func closeDB(db *gorm.DB, log *logrus.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Warn("Error closing database")
	}
}

func serve(app *application) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var client *telegram.Client
	if app.cfg.BotEnabled() {
		var err error
		client, err = telegram.NewClient(app.cfg.TelegramToken, app.cfg.TelegramDebug)
		if err != nil {
			return fmt.Errorf("create telegram client: %w", err)
		}
		app.log.Infof("Authorized on account %s", client.Bot.Self.UserName)

		bot := handler.NewHandler(client, app.svc, app.cfg.AdminChatID, app.log)
		app.svc.Days.AddNotifier(bot)
		go bot.HandleUpdates(ctx, client.Updates())
	} else {
		app.log.Info("TELEGRAM_BOT_TOKEN not set, admin bot disabled")
	}

	advancer, err := scheduler.NewDayAdvancer(app.cfg.AdvanceCron, app.svc.Clock.Location, app.svc.Days, app.log)
	if err != nil {
		return err
	}
	advancer.Start(ctx)

	server := api.NewServer(app.svc, app.metrics, app.log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(app.cfg.HTTPAddr)
	}()

	app.log.Info("Scheduler started. Press Ctrl+C to stop.")

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		app.log.WithError(serveErr).Error("HTTP server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	advancer.Stop()
	if client != nil {
		client.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		app.log.WithError(err).Warn("HTTP shutdown failed")
	}

	app.log.Info("Scheduler stopped gracefully")
	return serveErr
}
