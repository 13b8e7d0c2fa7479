package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/geolm/pkg/geolm/corpus"
)

var (
	importJSONL string
	importDB    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load JSONL records into a SQLite corpus",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importJSONL, "jsonl", "", "JSONL file to read")
	importCmd.Flags().StringVar(&importDB, "db", "", "SQLite database to write")
	importCmd.MarkFlagRequired("jsonl")
	importCmd.MarkFlagRequired("db")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	src, err := corpus.LoadJSONL(importJSONL, logger)
	if err != nil {
		return err
	}
	records, err := src.Records(ctx)
	if err != nil {
		return err
	}

	db, err := corpus.OpenSQLite(ctx, importDB, logger)
	if err != nil {
		return fmt.Errorf("open %s: %w", importDB, err)
	}
	defer db.Close()

	stored, err := db.InsertAll(ctx, records)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	logger.Info("import complete",
		zap.String("db", importDB),
		zap.Int("read", len(records)),
		zap.Int("stored", stored))
	fmt.Fprintf(cmd.OutOrStdout(), "stored %d of %d records in %s\n", stored, len(records), importDB)
	return nil
}
