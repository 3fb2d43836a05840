package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cleaning-manager/internal/bot"
	"cleaning-manager/internal/config"
	"cleaning-manager/internal/repository"
	"cleaning-manager/internal/service"
)

func serveCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*dbPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func loadConfig(dbPath string) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if dbPath != "" {
		cfg.DatabaseURL = dbPath
	}
	return cfg, nil
}

func runServe(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	seed, err := config.LoadSeed(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	documentRepo := repository.NewDocumentRepository(db)

	sessions := service.NewSessionManager(documentRepo, service.NewAuthService(userRepo), service.SessionConfig{
		AppID:        cfg.AppID,
		Seed:         seed,
		Location:     cfg.Location,
		SyncDelay:    cfg.SyncIndicatorDelay,
		StoreTimeout: cfg.StoreTimeout,
	})
	defer sessions.CloseAll()
	reportSvc := service.NewReportService(documentRepo, cfg.AppID)

	telegramBot, err := bot.New(cfg.TelegramToken, sessions, reportSvc, userRepo, cfg.Location)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	if cfg.ReportSchedule != "" {
		scheduler := service.NewSchedulerService(cfg.Location)
		reportJob, err := scheduler.Schedule(cfg.ReportSchedule, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendProgressReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("report: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule reports: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Printf("[info] progress reports scheduled: %s next=%s", cfg.ReportSchedule, scheduler.Next(reportJob).Format(time.RFC3339))
	}

	log.Printf("[info] cleaning bot started app=%s", cfg.AppID)
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped with error: %w", err)
	}
	log.Println("Shutdown complete.")
	return nil
}
