/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/securebank/backoffice/config"
	"github.com/securebank/backoffice/internal/db"
	"github.com/securebank/backoffice/internal/logging"
	"github.com/securebank/backoffice/internal/services"
	"github.com/securebank/backoffice/internal/storage"
	"github.com/securebank/backoffice/internal/store"
	"github.com/spf13/cobra"
)

var exportLimit int

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export ledger data to object storage",
}

var exportTransfersCmd = &cobra.Command{
	Use:   "transfers",
	Short: "Write the recent transfer history as a JSON snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, closer := newLogger(cfg)
		defer closer.Close()
		ctx := cmd.Context()

		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		exporter, objects, err := openExporter(ctx, cfg, conn, log)
		if err != nil {
			return err
		}
		key, err := exporter.ExportTransfers(ctx, exportLimit)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), objects.Location(key))
		return nil
	},
}

var exportShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print a transfer snapshot stored in object storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, closer := newLogger(cfg)
		defer closer.Close()
		ctx := cmd.Context()

		exporter, _, err := openExporter(ctx, cfg, nil, log)
		if err != nil {
			return err
		}
		snapshot, err := exporter.Snapshot(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	},
}

var exportDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a transfer snapshot from object storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, closer := newLogger(cfg)
		defer closer.Close()
		ctx := cmd.Context()

		exporter, _, err := openExporter(ctx, cfg, nil, log)
		if err != nil {
			return err
		}
		return exporter.Remove(ctx, args[0])
	},
}

// openExporter builds the export service. conn may be nil for commands that
// only read or delete existing snapshots.
func openExporter(ctx context.Context, cfg config.Config, conn *sql.DB, log logging.Logger) (*services.ExportService, *storage.Storage, error) {
	objects, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var ledger *services.LedgerService
	if conn != nil {
		ledger = services.NewLedgerService(store.NewLedgerRepository(conn), log, services.LedgerOptions{
			DefaultHistoryLimit: cfg.Ledger.DefaultHistoryLimit,
			MaxHistoryLimit:     cfg.Ledger.MaxHistoryLimit,
		})
	}
	return services.NewExportService(ledger, objects, log), objects, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportTransfersCmd, exportShowCmd, exportDeleteCmd)

	exportTransfersCmd.Flags().IntVar(&exportLimit, "limit", 0, "number of transfers to include (0 uses TRANSFER_HISTORY_LIMIT)")
}
