package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cleaning-manager/internal/config"
	"cleaning-manager/internal/model"
	"cleaning-manager/internal/repository"
	"cleaning-manager/internal/service"
)

// userExport is the YAML shape printed by the export command.
type userExport struct {
	Identity    string                `yaml:"identity"`
	LastUpdated int64                 `yaml:"lastUpdated,omitempty"`
	Categories  model.Catalog         `yaml:"categories"`
	History     []model.HistoryRecord `yaml:"history"`
}

func exportCmd(dbPath *string) *cobra.Command {
	var telegramID int64
	var identity string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a user's checklist and history as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if telegramID == 0 && identity == "" {
				return errors.New("one of --telegram-id or --identity is required")
			}
			cfg, err := loadConfig(*dbPath)
			if err != nil {
				return err
			}
			db, err := repository.NewDB(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if identity == "" {
				user, err := repository.NewUserRepository(db).FindByTelegramID(ctx, telegramID)
				if err != nil {
					return fmt.Errorf("find user %d: %w", telegramID, err)
				}
				identity = user.ChecklistID()
			}

			out, err := buildExport(ctx, repository.NewDocumentRepository(db), cfg.AppID, identity)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().Int64Var(&telegramID, "telegram-id", 0, "Telegram user id")
	cmd.Flags().StringVar(&identity, "identity", "", "Stored identity (share code)")

	return cmd
}

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Print the checklist new users start with",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = os.Getenv("SEED_FILE")
			}
			seed, err := config.LoadSeed(file)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), seed)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed file to validate instead of SEED_FILE")

	return cmd
}

func buildExport(ctx context.Context, store service.DocumentStore, appID, identity string) (userExport, error) {
	var doc model.CatalogDocument
	if err := store.GetDocument(ctx, service.CatalogPath(appID, identity), &doc); err != nil {
		return userExport{}, fmt.Errorf("read checklist of %s: %w", identity, err)
	}

	archive := service.NewArchiveManager(store, appID, identity)
	if err := archive.LoadHistory(ctx); err != nil {
		return userExport{}, err
	}

	return userExport{
		Identity:    identity,
		LastUpdated: doc.LastUpdated,
		Categories:  doc.Categories,
		History:     archive.Records(),
	}, nil
}

func writeYAML(w io.Writer, value any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
