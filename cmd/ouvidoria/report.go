package main

import (
	"context"
	"fmt"
	"strings"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/report/formatter"
	"github.com/harunnryd/ouvidoria/internal/store"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect stored reports",
}

var reportLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the most recent reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		f, err := recordFormatter(cmd)
		if err != nil {
			return err
		}

		return withReports(cmd.Context(), func(repo report.Repository) error {
			records, err := repo.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list reports: %w", err)
			}
			out, err := f.FormatRecords(records)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <protocol>",
	Short: "Show one report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := recordFormatter(cmd)
		if err != nil {
			return err
		}
		protocol := strings.ToUpper(strings.TrimSpace(args[0]))

		return withReports(cmd.Context(), func(repo report.Repository) error {
			rec, err := repo.FindByProtocol(cmd.Context(), protocol)
			if ouvErrors.IsCategory(err, ouvErrors.ErrNotFound) {
				return fmt.Errorf("report %s not found", protocol)
			}
			if err != nil {
				return fmt.Errorf("find report: %w", err)
			}
			out, err := f.FormatRecord(rec)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		})
	},
}

func recordFormatter(cmd *cobra.Command) (formatter.RecordFormatter, error) {
	value, _ := cmd.Flags().GetString("format")
	format, err := formatter.ParseOutputFormat(value)
	if err != nil {
		return nil, err
	}
	return formatter.NewFormatterFactory().Create(format)
}

func withReports(ctx context.Context, fn func(report.Repository) error) error {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := store.OpenSQLite(ctx, cfg.Records.Path, report.Schema(cfg.Records.Table))
	if err != nil {
		return fmt.Errorf("open records store: %w", err)
	}
	defer db.Close()
	return fn(report.NewStoreRepository(db, cfg.Records.Table))
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportLsCmd)
	reportCmd.AddCommand(reportShowCmd)

	reportCmd.PersistentFlags().StringP("format", "f", "table", "output format: table, json or yaml")
	reportLsCmd.Flags().Int("limit", 20, "maximum number of reports")
}
