package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/geolm/pkg/geolm/config"
	"github.com/cognicore/geolm/pkg/geolm/corpus"
)

var (
	verbose bool
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:          "geolm",
	Short:        "geolm: language models for document geolocation",
	Long:         "Build smoothed unigram and n-gram models from count strings and compare documents by KL-divergence, cosine similarity or Naive Bayes.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging at debug level")

	rootCmd.AddCommand(countsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(stopwordsCmd)
}

// sourceFlags selects where corpus records come from.
type sourceFlags struct {
	jsonl string
	db    string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.jsonl, "jsonl", "", "read records from a JSONL file")
	cmd.Flags().StringVar(&f.db, "db", "", "read records from a SQLite corpus")
	cmd.MarkFlagsMutuallyExclusive("jsonl", "db")
	cmd.MarkFlagsOneRequired("jsonl", "db")
}

// open returns the selected source and a function releasing it.
func (f *sourceFlags) open(ctx context.Context) (corpus.Source, func(), error) {
	if f.jsonl != "" {
		src, err := corpus.LoadJSONL(f.jsonl, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}

	src, err := corpus.OpenSQLite(ctx, f.db, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", f.db, err)
	}
	return src, func() { src.Close() }, nil
}

// loadComponents reads the config file, or the defaults when path is empty.
func loadComponents(path string) (*config.Components, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	return (&config.Loader{Config: cfg}).Load()
}
